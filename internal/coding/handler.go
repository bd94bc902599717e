package coding

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aurevtech/coder/internal/catalog"
	"github.com/aurevtech/coder/internal/platform/auth"
)

type Handler struct {
	engine *Engine
	cat    *catalog.Catalog
}

func NewHandler(engine *Engine, cat *catalog.Catalog) *Handler {
	return &Handler{engine: engine, cat: cat}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	coders := api.Group("", auth.RequireRole("admin", "coder", "billing"))
	coders.POST("/code", h.Code)
	coders.POST("/code/validate", h.Validate)

	api.GET("/code/example", h.Example)
}

// Code runs the full coding pipeline on the posted encounter. Processing
// failures are reported inside the response envelope, not as HTTP errors;
// only a malformed payload earns a 400.
func (h *Handler) Code(c echo.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	resp := h.engine.Process(req)
	return c.JSON(http.StatusOK, resp)
}

// Validate checks the request fields without running the pipeline.
func (h *Handler) Validate(c echo.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	mode := req.Mode
	if mode == "" {
		mode = ModeAnalyze
	}
	if err := validateRequest(&req, mode); err != nil {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"valid": false,
			"errors": []ErrorEntry{
				{Code: ErrInputValidation, Message: err.Error()},
			},
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"valid":  true,
		"errors": []ErrorEntry{},
	})
}

// Example returns a complete request payload clients can start from.
func (h *Handler) Example(c echo.Context) error {
	return c.JSON(http.StatusOK, ExampleRequest())
}

// ExampleRequest is a representative encounter exercising extraction,
// E/M leveling, and the compliance families.
func ExampleRequest() Request {
	return Request{
		Mode: ModeExplain,
		Patient: Patient{
			Age: 45,
			Sex: "F",
		},
		Encounter: Encounter{
			Date:         "2025-06-17",
			POSCode:      "11",
			Payer:        "Medicare",
			ProviderType: "established",
		},
		ClinicalNote: "Patient complains of palpitations and chest discomfort for two days. " +
			"BP 128/82, HR 96. Normal physical examination otherwise. " +
			"ECG performed and interpreted: normal sinus rhythm. " +
			"Blood draw completed for comprehensive metabolic panel.",
		Structured: Structured{
			Diagnoses: []string{"R00.2"},
		},
	}
}
