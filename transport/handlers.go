package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"confectionery/pkg/domain/model"
	"confectionery/pkg/domain/service"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	maxBodyBytes         = 1 << 20
	defaultPageSize      = 10
)

type StorePinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	orders  service.OrderService
	store   StorePinger
	timeout time.Duration
}

func Router(orders service.OrderService, store StorePinger, metrics *Metrics, requestTimeout time.Duration) http.Handler {
	handler := &Handler{
		orders:  orders,
		store:   store,
		timeout: requestTimeout,
	}

	r := mux.NewRouter()
	r.HandleFunc("/", handler.helloWorld).Methods(http.MethodGet)
	r.HandleFunc("/pedidos", handler.createOrder).Methods(http.MethodPost)
	r.HandleFunc("/pedidos", handler.listOrders).Methods(http.MethodGet)
	r.HandleFunc("/pedido/{id:[0-9]+}", handler.getOrder).Methods(http.MethodGet)
	r.HandleFunc("/pedidos/{id:[0-9]+}", handler.updateOrder).Methods(http.MethodPatch)
	r.HandleFunc("/pedido/{id:[0-9]+}", handler.deleteOrder).Methods(http.MethodDelete)
	r.HandleFunc("/health", handler.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.Use(metrics.instrument)

	return logMiddleware(r)
}

func (h *Handler) helloWorld(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "Hello World"})
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	draft, err := req.toDraft()
	if err != nil {
		writeError(w, r, err)
		return
	}
	draft.IdempotencyKey = strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))

	ctx, cancel := h.context(r)
	defer cancel()

	order, replayed, err := h.orders.CreateOrder(ctx, draft)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if replayed {
		requestLogger(r).WithField("orderID", order.ID).Info("replayed order for idempotency key")
		status = http.StatusOK
	}
	writeJSON(w, status, newOrderResponse(order))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeError(w, r, err)
		return
	}
	pageSize, err := queryInt(r, "page_size", defaultPageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := h.context(r)
	defer cancel()

	orders, err := h.orders.ListOrders(ctx, page, pageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, newOrderResponse(&orders[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := h.context(r)
	defer cancel()

	order, err := h.orders.FindOrder(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(order))
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req updateOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := h.context(r)
	defer cancel()

	order, err := h.orders.UpdateOrder(ctx, id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(order))
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := h.context(r)
	defer cancel()

	if err := h.orders.DeleteOrder(ctx, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Pedido removido com sucesso."})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		requestLogger(r).WithError(err).Warn("store ping failed")
		writeJSON(w, http.StatusServiceUnavailable, statusResponse{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (h *Handler) context(r *http.Request) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), h.timeout)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err == nil && len(bytes.TrimSpace(body)) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "request body is empty"})
		return false
	}
	if err == nil {
		err = json.Unmarshal(body, dst)
	}
	if err == nil {
		return true
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		writeError(w, r, model.NewValidationError(typeErrorPath(body, typeErr.Field), "must be of type "+typeErr.Type.String()))
		return false
	}

	requestLogger(r).WithError(err).Info("malformed request body")
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed JSON body"})
	return false
}

// typeErrorPath adds the element index to a type error reported inside
// itens_pedido, which encoding/json leaves out.
func typeErrorPath(body []byte, field string) string {
	rest := strings.TrimPrefix(field, "itens_pedido.")
	if rest == field {
		return field
	}

	var envelope struct {
		Items []json.RawMessage `json:"itens_pedido"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return field
	}
	for i, raw := range envelope.Items {
		var item orderItemRequest
		if err := json.Unmarshal(raw, &item); err != nil {
			return itemPath(i, rest)
		}
	}
	return field
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *model.ValidationError
	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: validationErr.Message, Field: validationErr.Field})
	case errors.Is(err, model.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Pedido não encontrado."})
	case errors.Is(err, model.ErrReferentialIntegrity):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "referenced client or product does not exist"})
	case errors.Is(err, model.ErrDuplicate):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "conflicting record already exists"})
	case errors.Is(err, model.ErrStoreUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		requestLogger(r).WithError(err).Warn("store unavailable")
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "service temporarily unavailable"})
	default:
		requestLogger(r).WithError(err).Error("request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	payload, err := json.Marshal(body)
	if err != nil {
		log.WithError(err).Error("encode response body")
		status = http.StatusInternalServerError
		payload = []byte(`{"error":"internal server error"}`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(payload, '\n')); err != nil {
		log.WithError(err).Error("write response body")
	}
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, model.NewValidationError("id", "must be a positive id")
	}
	return id, nil
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, model.NewValidationError(name, "must be an integer")
	}
	return value, nil
}
