package controllers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/arcadia-bio/biocore/modules/biobank/presentation/controllers/dtos"
	"github.com/arcadia-bio/biocore/modules/biobank/presentation/mappers"
	"github.com/arcadia-bio/biocore/modules/biobank/services"
	"github.com/arcadia-bio/biocore/pkg/application"
)

// OrdersAPIController is the JSON surface of the order lifecycle engine.
type OrdersAPIController struct {
	app      application.Application
	orders   *services.OrderService
	basePath string
}

func NewOrdersAPIController(app application.Application) application.Controller {
	return &OrdersAPIController{
		app:      app,
		orders:   app.Service(services.OrderService{}).(*services.OrderService),
		basePath: "/biobank/api",
	}
}

func (c *OrdersAPIController) Key() string {
	return c.basePath + "/orders"
}

func (c *OrdersAPIController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("/orders", c.Create).Methods(http.MethodPost)
	router.HandleFunc("/orders/{clientID}", c.Get).Methods(http.MethodGet)
	router.HandleFunc("/orders/{clientID}/amend", c.Amend).Methods(http.MethodPost)
	router.HandleFunc("/orders/{clientID}/cancel", c.Cancel).Methods(http.MethodPost)
	router.HandleFunc("/orders/{clientID}/restore", c.Restore).Methods(http.MethodPost)
}

func (c *OrdersAPIController) Get(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["clientID"]
	res, err := c.orders.Get(r.Context(), clientID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.OrderToView(res.Order, res.Samples))
}

func (c *OrdersAPIController) Create(w http.ResponseWriter, r *http.Request) {
	var dto dtos.OrderContentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "BIOBANK_INVALID_JSON", "invalid json")
		return
	}
	if errs, ok := dto.Ok(); !ok {
		writeAPIError(w, r, http.StatusUnprocessableEntity, "BIOBANK_VALIDATION_FAILED", errs.First())
		return
	}

	sub, err := dto.ToSubmission()
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "BIOBANK_BAD_IDENTIFIER", err.Error())
		return
	}

	res, err := c.orders.Create(r.Context(), sub)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.Idempotent {
		status = http.StatusOK
	}
	writeJSON(w, status, mappers.OrderToView(res.Order, res.Samples))
}

func (c *OrdersAPIController) Amend(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["clientID"]

	var dto dtos.AmendOrderDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "BIOBANK_INVALID_JSON", "invalid json")
		return
	}
	dto.ClientID = clientID
	if errs, ok := dto.Ok(); !ok {
		writeAPIError(w, r, http.StatusUnprocessableEntity, "BIOBANK_VALIDATION_FAILED", errs.First())
		return
	}

	sub, err := dto.ToSubmission()
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "BIOBANK_BAD_IDENTIFIER", err.Error())
		return
	}
	by, err := dto.ToTransition()
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "BIOBANK_BAD_IDENTIFIER", err.Error())
		return
	}

	res, err := c.orders.Amend(r.Context(), clientID, dto.Version, sub, by)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.OrderToView(res.Order, res.Samples))
}

func (c *OrdersAPIController) Cancel(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, c.orders.Cancel)
}

func (c *OrdersAPIController) Restore(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, c.orders.Restore)
}

func (c *OrdersAPIController) transition(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, clientID string, version int32, by services.TransitionInput) (*services.MutationResult, error),
) {
	clientID := mux.Vars(r)["clientID"]

	var dto dtos.TransitionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "BIOBANK_INVALID_JSON", "invalid json")
		return
	}
	if errs, ok := dto.Ok(); !ok {
		writeAPIError(w, r, http.StatusUnprocessableEntity, "BIOBANK_VALIDATION_FAILED", errs.First())
		return
	}

	by, err := dto.ToInput()
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "BIOBANK_BAD_IDENTIFIER", err.Error())
		return
	}

	res, err := op(r.Context(), clientID, dto.Version, by)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.OrderToView(res.Order, res.Samples))
}
