package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"bookfinder/internal/httpx"
)

type HTTPHandler struct {
	svc *Service
}

func NewHTTPHandler(svc *Service) *HTTPHandler {
	return &HTTPHandler{svc: svc}
}

// Register mounts the gateway routes on mux. Every route is GET only.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.Handle("/books/search", httpx.GetOnly(h.Search))
	mux.Handle("/books/trending", httpx.GetOnly(h.Trending))
	mux.Handle("/books/recommendations", httpx.GetOnly(h.Recommendations))
	mux.Handle("/health", httpx.GetOnly(h.Health))
}

type searchRequest struct {
	Q     string `validate:"required"`
	Type  string
	Limit int `validate:"gte=1,lte=100"`
}

// Search handles GET /books/search
// @Summary Search Open Library
// @Param q query string true "Search text"
// @Param type query string false "general, title, author, subject or isbn" default(general)
// @Param limit query int false "Maximum books" default(20)
// @Success 200 {object} SearchResult
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 500 {object} httpx.ErrorResponse
// @Router /books/search [get]
func (h *HTTPHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	req := searchRequest{
		Q:     query.Get("q"),
		Type:  query.Get("type"),
		Limit: DefaultSearchLimit,
	}
	if req.Type == "" {
		req.Type = TypeGeneral
	}
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httpx.JSONError(w, r, http.StatusBadRequest, httpx.CodeInvalidRequest, "Invalid limit",
				[]httpx.ErrorDetail{{Field: "limit", Message: "limit must be an integer"}})
			return
		}
		req.Limit = n
	}
	if details := httpx.ValidateStruct(req); details != nil {
		message := "Invalid search parameters"
		if req.Q == "" {
			message = "Search query is required"
		}
		httpx.JSONError(w, r, http.StatusBadRequest, httpx.CodeInvalidRequest, message, details)
		return
	}

	res, err := h.svc.Search(r.Context(), SearchQuery{Q: req.Q, Type: req.Type, Limit: req.Limit})
	if err != nil {
		writeError(w, r, err, "Search query is required", "Failed to search books")
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

// Trending handles GET /books/trending. The limit is fixed.
// @Summary Highly rated books for a random academic subject
// @Success 200 {object} TrendingResult
// @Failure 500 {object} httpx.ErrorResponse
// @Router /books/trending [get]
func (h *HTTPHandler) Trending(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Trending(r.Context(), DefaultTrendingLimit)
	if err != nil {
		writeError(w, r, err, "Invalid request", "Failed to fetch trending books")
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

// Recommendations handles GET /books/recommendations
// @Summary Highly rated books for one of the given subjects
// @Param subjects query string true "Comma separated subjects"
// @Success 200 {object} RecommendationResult
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 500 {object} httpx.ErrorResponse
// @Router /books/recommendations [get]
func (h *HTTPHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Recommendations(r.Context(), r.URL.Query().Get("subjects"))
	if err != nil {
		writeError(w, r, err, "Subjects parameter is required", "Failed to fetch recommendations")
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Health handles GET /health
func (h *HTTPHandler) Health(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, healthResponse{Status: "OK", Message: "Book Finder API is running"})
}

func writeError(w http.ResponseWriter, r *http.Request, err error, invalidMessage, upstreamMessage string) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		httpx.JSONError(w, r, http.StatusBadRequest, httpx.CodeInvalidRequest, invalidMessage, nil)
	case errors.Is(err, ErrMethodNotAllowed):
		httpx.JSONError(w, r, http.StatusMethodNotAllowed, httpx.CodeMethodNotAllowed, "Method not allowed", nil)
	case errors.Is(err, ErrUpstreamUnavailable):
		httpx.JSONError(w, r, http.StatusInternalServerError, httpx.CodeUpstreamUnavailable, upstreamMessage, nil)
	default:
		httpx.JSONError(w, r, http.StatusInternalServerError, httpx.CodeInternal, "Internal server error", nil)
	}
}
