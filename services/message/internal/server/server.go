package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"messagecrud/internal/access"
	"messagecrud/internal/ratelimit"
	"messagecrud/internal/util"
	"messagecrud/pkg/domain"
	"messagecrud/services/message/internal/app"
)

const supportedVersionsHeader = "api-supported-versions"

const maxBodyBytes = 1 << 20

// IdentityResolver turns a bearer token into the calling user.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (domain.User, error)
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	Identity       IdentityResolver
	Policy         access.Policy
	APIVersions    []string
	AllowedOrigins []string
	TrustedProxies *util.TrustedProxies
	// WriteLimiter throttles create, update, and delete per user. Nil disables it.
	WriteLimiter *ratelimit.FixedWindowLimiter
}

// Server exposes the versioned message API.
type Server struct {
	app            *app.App
	identity       IdentityResolver
	policy         access.Policy
	versions       []string
	versionsHeader string
	allowedOrigins []string
	trusted        *util.TrustedProxies
	writeLimiter   *ratelimit.FixedWindowLimiter
	validate       *validator.Validate
	router         chi.Router
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app required")
	}
	if cfg.Identity == nil {
		return nil, errors.New("identity resolver required")
	}
	policy := cfg.Policy
	if policy == nil {
		policy = access.DefaultPolicy()
	}
	versions := make([]string, 0, len(cfg.APIVersions))
	for _, v := range cfg.APIVersions {
		if v = normalizeVersion(v); v != "" && !slices.Contains(versions, v) {
			versions = append(versions, v)
		}
	}
	if len(versions) == 0 {
		versions = []string{"1.0", "2.0"}
	}
	s := &Server{
		app:            cfg.App,
		identity:       cfg.Identity,
		policy:         policy,
		versions:       versions,
		versionsHeader: strings.Join(versions, ", "),
		allowedOrigins: cfg.AllowedOrigins,
		trusted:        cfg.TrustedProxies,
		writeLimiter:   cfg.WriteLimiter,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(util.WithRequestID)
	r.Use(util.WithRequestLog("message", s.trusted))
	r.Use(util.WithSecurityHeaders(s.trusted))
	r.Use(util.WithCORS(s.allowedOrigins))

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/{version}", func(r chi.Router) {
		r.Use(s.withAPIVersion)
		r.Route("/message", func(r chi.Router) {
			r.Get("/", s.withAccess(access.ListOwn, s.handleListOwn))
			r.Get("/{userId}", s.withAccess(access.ListOther, s.handleListOther))
			r.Post("/", s.withAccess(access.Create, s.limitWrites(s.handleCreate)))
			r.Put("/", s.withAccess(access.UpdateOwn, s.limitWrites(s.handleUpdate)))
			r.Delete("/delete/{id}", s.withAccess(access.DeleteOwn, s.limitWrites(s.handleDeleteOwn)))
			r.Delete("/delete/{userId}/{messageId}", s.withAccess(access.DeleteOther, s.limitWrites(s.handleDeleteOther)))
		})
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found", "SYSTEM_NOT_FOUND")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed", "SYSTEM_METHOD_NOT_ALLOWED")
	})
	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// withAPIVersion announces the supported versions and rejects any other.
func (s *Server) withAPIVersion(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(supportedVersionsHeader, s.versionsHeader)
		version := normalizeVersion(chi.URLParam(r, "version"))
		if !slices.Contains(s.versions, version) {
			writeError(w, r, http.StatusNotFound, "unsupported api version", "SYSTEM_UNSUPPORTED_API_VERSION")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// normalizeVersion maps "v2", "2" and "2.0" to "2.0".
func normalizeVersion(raw string) string {
	v := strings.TrimSpace(raw)
	v = strings.TrimPrefix(strings.TrimPrefix(v, "v"), "V")
	if v == "" {
		return ""
	}
	if !strings.Contains(v, ".") {
		v += ".0"
	}
	return v
}

type userHandler func(http.ResponseWriter, *http.Request, domain.User)

// withAccess authenticates the caller and checks op against the policy before next runs.
func (s *Server) withAccess(op access.Operation, next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.audit(r, "auth", "rejected", "reason", "missing_token")
			writeError(w, r, http.StatusUnauthorized, "unauthorized", "AUTH_INVALID_TOKEN")
			return
		}
		user, err := s.identity.Resolve(r.Context(), token)
		if err != nil {
			if errors.Is(err, app.ErrStorage) {
				util.LoggerFromContext(r.Context()).Error("resolve identity failed", "err", err)
				writeError(w, r, http.StatusInternalServerError, "internal error", "SYSTEM_INTERNAL_ERROR")
				return
			}
			s.audit(r, "auth", "rejected", "reason", "invalid_identity", "err", err.Error())
			writeError(w, r, http.StatusUnauthorized, "unauthorized", "AUTH_INVALID_TOKEN")
			return
		}
		if err := s.policy.Authorize(user.Role, op); err != nil {
			s.audit(r, string(op), "denied", "user_id", user.ID, "role", string(user.Role))
			writeError(w, r, http.StatusUnauthorized, "unauthorized", "AUTH_UNAUTHORIZED")
			return
		}
		next(w, r, user)
	}
}

// limitWrites applies the per-user write quota.
func (s *Server) limitWrites(next userHandler) userHandler {
	return func(w http.ResponseWriter, r *http.Request, user domain.User) {
		if s.writeLimiter == nil || s.writeLimiter.Allow(r.Context(), "write|"+user.ID) {
			next(w, r, user)
			return
		}
		s.audit(r, "write", "rate_limited", "user_id", user.ID)
		w.Header().Set("Retry-After", strconv.Itoa(int(s.writeLimiter.Window().Seconds())))
		writeError(w, r, http.StatusTooManyRequests, "too many requests", "SYSTEM_RATE_LIMITED")
	}
}

type createMessageRequest struct {
	Text *string `json:"text" validate:"required"`
}

type createMessageResponse struct {
	ID string `json:"id"`
}

type updateMessageRequest struct {
	ID   string  `json:"id" validate:"required"`
	Text *string `json:"text" validate:"required"`
}

func (s *Server) handleListOwn(w http.ResponseWriter, r *http.Request, user domain.User) {
	s.listMessages(w, r, user, user.ID)
}

func (s *Server) handleListOther(w http.ResponseWriter, r *http.Request, user domain.User) {
	s.listMessages(w, r, user, chi.URLParam(r, "userId"))
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request, user domain.User, ownerID string) {
	view, err := s.app.ListMessages(r.Context(), user, ownerID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req createMessageRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	id, err := s.app.CreateMessage(r.Context(), user, *req.Text)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, createMessageResponse{ID: id})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req updateMessageRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	id, ok := parseMessageID(req.ID)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid message id", "MESSAGE_INVALID_ID")
		return
	}
	if err := s.app.UpdateMessage(r.Context(), user, id, *req.Text); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteOwn(w http.ResponseWriter, r *http.Request, user domain.User) {
	s.deleteMessage(w, r, user, user.ID, chi.URLParam(r, "id"))
}

func (s *Server) handleDeleteOther(w http.ResponseWriter, r *http.Request, user domain.User) {
	s.deleteMessage(w, r, user, chi.URLParam(r, "userId"), chi.URLParam(r, "messageId"))
}

func (s *Server) deleteMessage(w http.ResponseWriter, r *http.Request, user domain.User, ownerID, rawID string) {
	id, ok := parseMessageID(rawID)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid message id", "MESSAGE_INVALID_ID")
		return
	}
	if err := s.app.DeleteMessage(r.Context(), user, ownerID, id); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if ownerID != user.ID {
		s.audit(r, string(access.DeleteOther), "success", "user_id", user.ID, "owner_id", ownerID, "message_id", id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeJSON reads and validates a request body, writing a 400 on failure.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body", "MESSAGE_INVALID_REQUEST")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, validationMessage(err), "MESSAGE_INVALID_REQUEST")
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	return fmt.Sprintf("%s is %s", strings.ToLower(verrs[0].Field()), verrs[0].Tag())
}

// parseMessageID accepts any UUID form and returns the canonical lower-case string.
func parseMessageID(raw string) (string, bool) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	return id.String(), true
}

func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrTextRequired):
		writeError(w, r, http.StatusBadRequest, "text required", "MESSAGE_TEXT_REQUIRED")
	case errors.Is(err, app.ErrTextTooLong):
		writeError(w, r, http.StatusBadRequest, "text too long", "MESSAGE_TEXT_TOO_LONG")
	case errors.Is(err, app.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "message not found", "MESSAGE_NOT_FOUND")
	case errors.Is(err, app.ErrForbidden):
		s.audit(r, "message", "forbidden")
		writeError(w, r, http.StatusForbidden, "forbidden", "MESSAGE_FORBIDDEN")
	default:
		util.LoggerFromContext(r.Context()).Error("message request failed", "err", err)
		writeError(w, r, http.StatusInternalServerError, "internal error", "SYSTEM_INTERNAL_ERROR")
	}
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.trusted),
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg, code string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      code,
		RequestID: util.RequestIDFromRequest(r),
	})
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}
