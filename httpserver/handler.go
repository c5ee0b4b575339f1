package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/invisicipher/secure-image-backend/api"
	"github.com/invisicipher/secure-image-backend/apperr"
	"github.com/invisicipher/secure-image-backend/auth"
	"github.com/invisicipher/secure-image-backend/interfaces"
	"github.com/invisicipher/secure-image-backend/metrics"
	"github.com/invisicipher/secure-image-backend/pipeline"
)

// maxImageSize bounds multipart image uploads (20MB).
const maxImageSize = 20 * 1024 * 1024

// Handler processes HTTP requests for the secure image backend. It wires
// the authentication service and pipeline orchestrator to the API surface.
type Handler struct {
	auth     *auth.Service
	pipeline *pipeline.Orchestrator
	tokens   interfaces.TokenCodec
	log      *slog.Logger
	metrics  *metrics.MetricsServer
}

// NewHandler creates the request handler with its collaborators.
func NewHandler(authSvc *auth.Service, orch *pipeline.Orchestrator, tokens interfaces.TokenCodec, log *slog.Logger) *Handler {
	return &Handler{
		auth:     authSvc,
		pipeline: orch,
		tokens:   tokens,
		log:      log,
	}
}

// HandleRegister creates a user profile and anchors its credential
// commitment.
//
// URL format: POST /api/auth/register
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		h.writeError(w, r, apperr.Validation("invalid request body"))
		return
	}

	result, err := h.auth.Register(r.Context(), req.Address, req.Username, interfaces.Role(req.Role), req.Permissions)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	data := api.RegisterData{
		Address:  result.Profile.Address.String(),
		Username: result.Profile.Username,
		Role:     string(result.Profile.Role),
		Anchored: result.Outcome == interfaces.RegisterAnchored,
	}
	message := "User registered and credential anchored"
	if result.Outcome == interfaces.RegisterPersistedOnly {
		message = "User registered; credential anchoring failed and will need attention"
		data.AnchorError = result.AnchorErr.Error()
	} else if result.Receipt != nil {
		data.TxHash = result.Receipt.TxHash
		data.BlockNumber = result.Receipt.BlockNumber
	}

	h.writeSuccess(w, r, http.StatusCreated, message, data)
}

// HandleChallenge issues a fresh sign-in challenge for the address,
// replacing any outstanding one.
//
// URL format: GET /api/auth/challenge/{address}
func (h *Handler) HandleChallenge(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")

	message, err := h.auth.IssueChallenge(address)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeSuccess(w, r, http.StatusOK, "Challenge issued", api.ChallengeData{
		Address: address,
		Message: message,
	})
}

// HandleAuthenticate verifies a signed challenge and issues a bearer token.
//
// URL format: POST /api/auth/login
func (h *Handler) HandleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req api.AuthenticateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		h.writeError(w, r, apperr.Validation("invalid request body"))
		return
	}

	token, claims, err := h.auth.Authenticate(r.Context(), req.Address, req.Signature)
	if err != nil {
		h.countAuth("failure")
		h.writeError(w, r, err)
		return
	}
	h.countAuth("success")

	h.writeSuccess(w, r, http.StatusOK, "Authentication successful", api.AuthenticateData{
		Token:       token,
		Address:     claims.Address.String(),
		Username:    claims.Username,
		Role:        string(claims.Role),
		Permissions: claims.Permissions,
	})
}

// HandleCheckUser reports whether an address is registered.
//
// URL format: GET /api/auth/check/{address}
func (h *Handler) HandleCheckUser(w http.ResponseWriter, r *http.Request) {
	registered, role, err := h.auth.CheckUser(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeSuccess(w, r, http.StatusOK, "", api.CheckUserData{
		Registered: registered,
		Role:       string(role),
	})
}

// HandleStore runs the store pipeline: embed, encrypt, upload, cache,
// anchor. Admin only.
//
// URL format: POST /api/images/store
// Multipart fields: cover_image, secret_image, patient_address
func (h *Handler) HandleStore(w http.ResponseWriter, r *http.Request) {
	caller, ok := ClaimsFromContext(r.Context())
	if !ok {
		h.writeError(w, r, apperr.Auth("missing authentication", nil))
		return
	}

	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		h.writeError(w, r, apperr.Validation("invalid multipart request"))
		return
	}

	patient, err := interfaces.NewWalletAddressFromHex(r.FormValue("patient_address"))
	if err != nil {
		h.writeError(w, r, apperr.Validation("invalid patient address"))
		return
	}

	cover, err := readFormImage(r, "cover_image")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	secret, err := readFormImage(r, "secret_image")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	start := time.Now()
	result, err := h.pipeline.Store(r.Context(), caller.Address, patient, cover, secret)
	h.observePipeline("store", time.Since(start), err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeSuccess(w, r, http.StatusCreated, "Image stored and anchored", api.StoreData{
		CID:         string(result.CID),
		TxHash:      result.Receipt.TxHash,
		BlockNumber: result.Receipt.BlockNumber,
	})
}

// HandleRetrieve reverses the pipeline for a CID and streams the revealed
// image. Patients may only retrieve their own records.
//
// URL format: GET /api/images/retrieve/{cid}
func (h *Handler) HandleRetrieve(w http.ResponseWriter, r *http.Request) {
	caller, ok := ClaimsFromContext(r.Context())
	if !ok {
		h.writeError(w, r, apperr.Auth("missing authentication", nil))
		return
	}

	cid := interfaces.CID(chi.URLParam(r, "cid"))

	start := time.Now()
	image, err := h.pipeline.Retrieve(r.Context(), caller, cid)
	h.observePipeline("retrieve", time.Since(start), err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(image)))
	w.WriteHeader(http.StatusOK)
	w.Write(image)
}

// HandleRecords lists pipeline records for a patient address. Patients may
// only list their own.
//
// URL format: GET /api/records/{address}
func (h *Handler) HandleRecords(w http.ResponseWriter, r *http.Request) {
	caller, ok := ClaimsFromContext(r.Context())
	if !ok {
		h.writeError(w, r, apperr.Auth("missing authentication", nil))
		return
	}

	patient, err := interfaces.NewWalletAddressFromHex(chi.URLParam(r, "address"))
	if err != nil {
		h.writeError(w, r, apperr.Validation("invalid Ethereum address"))
		return
	}

	records, err := h.pipeline.Records(r.Context(), caller, patient)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	data := make([]api.RecordData, 0, len(records))
	for _, record := range records {
		item := api.RecordData{
			CID:            string(record.CID),
			PatientAddress: record.PatientAddress.String(),
			BlockNumber:    record.BlockNumber,
			TxHash:         record.TxHash,
		}
		var zero interfaces.WalletAddress
		if !record.UploadedBy.Equal(zero) {
			item.UploadedBy = record.UploadedBy.String()
		}
		if !record.CreatedAt.IsZero() {
			item.CreatedAt = record.CreatedAt.UTC().Format(time.RFC3339)
		}
		data = append(data, item)
	}

	h.writeSuccess(w, r, http.StatusOK, "", data)
}

func readFormImage(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, apperr.Validation(fmt.Sprintf("missing %s upload", field))
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageSize))
	if err != nil {
		return nil, apperr.Validation(fmt.Sprintf("failed to read %s upload", field))
	}
	return data, nil
}

// statusForKind maps the error taxonomy to HTTP status codes. Integrity
// failures surface as 401: the caller cannot be trusted with a session when
// the anchored commitment disagrees with the stored profile.
func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindAuth, apperr.KindIntegrity:
		return http.StatusUnauthorized
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindDependency:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusForKind(kind)

	logAttrs := []any{
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		"err", err,
	}
	if stage := apperr.StageOf(err); stage > 0 {
		logAttrs = append(logAttrs, slog.Int("stage", stage))
	}
	if status >= 500 {
		h.log.Error("Request failed", logAttrs...)
	} else {
		h.log.Debug("Request rejected", logAttrs...)
	}

	h.countRequest(r, status)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(api.Response{Success: false, Message: err.Error()})
}

func (h *Handler) writeSuccess(w http.ResponseWriter, r *http.Request, status int, message string, data any) {
	h.countRequest(r, status)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(api.Response{Success: true, Message: message, Data: data})
}

func (h *Handler) countRequest(r *http.Request, status int) {
	if h.metrics == nil {
		return
	}
	h.metrics.RequestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(status/100*100)).Inc()
}

func (h *Handler) countAuth(outcome string) {
	if h.metrics == nil {
		return
	}
	h.metrics.AuthOutcomes.WithLabelValues(outcome).Inc()
}

func (h *Handler) observePipeline(direction string, elapsed time.Duration, err error) {
	if h.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	h.metrics.PipelineRuns.WithLabelValues(direction, outcome).Inc()
	h.metrics.PipelineDuration.WithLabelValues(direction).Observe(elapsed.Seconds())
}

// ClaimsFromContext returns the authenticated claims stored by RequireAuth.
func ClaimsFromContext(ctx context.Context) (interfaces.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(interfaces.Claims)
	return claims, ok
}
