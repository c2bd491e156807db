package httpinterface

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/xswapd/internal/core/application/orchestrator"
	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/internal/core/ports"
	"github.com/tdex-network/xswapd/pkg/mathutil"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

var errReadOnly = errors.New("swap initiation disabled")

// SwapService is the set of swap operations exposed over HTTP.
type SwapService interface {
	InitiateSwap(ctx context.Context, args orchestrator.InitiateSwapArgs) (*domain.Swap, error)
	GetSwapStatus(ctx context.Context, swapID string) (*domain.Swap, error)
	ListSwaps(ctx context.Context, statuses ...domain.SwapStatus) ([]*domain.Swap, error)
	TxHistory(ctx context.Context, swapID string) (domain.TxHistory, error)
	SubscribeLogs(ctx context.Context, swapID string, from int) (<-chan domain.LogEntry, error)
	OpenOrders(ctx context.Context) ([]domain.Order, error)
	RevealedSecret(ctx context.Context, orderID string) (ports.SecretRelease, error)
}

type Handler struct {
	swapSvc  SwapService
	readOnly bool
	upgrader websocket.Upgrader
}

func NewHandler(swapSvc SwapService, readOnly bool) *Handler {
	return &Handler{
		swapSvc:  swapSvc,
		readOnly: readOnly,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) initiateSwap(w http.ResponseWriter, r *http.Request) {
	if h.readOnly {
		writeError(w, errReadOnly)
		return
	}

	var req initiateSwapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("invalid request body: %s", err),
		})
		return
	}

	args, err := parseInitiateSwapRequest(req)
	if err != nil {
		writeError(w, err)
		return
	}

	swap, err := h.swapSvc.InitiateSwap(r.Context(), args)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSwapInfo(swap))
}

func (h *Handler) listSwaps(w http.ResponseWriter, r *http.Request) {
	statuses := make([]domain.SwapStatus, 0)
	for _, name := range r.URL.Query()["status"] {
		status, ok := domain.ParseSwapStatus(name)
		if !ok {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Error: fmt.Sprintf("unknown swap status %q", name),
			})
			return
		}
		statuses = append(statuses, status)
	}

	swaps, err := h.swapSvc.ListSwaps(r.Context(), statuses...)
	if err != nil {
		writeError(w, err)
		return
	}

	list := make([]swapInfo, 0, len(swaps))
	for _, s := range swaps {
		list = append(list, toSwapInfo(s))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"swaps": list})
}

func (h *Handler) getSwap(w http.ResponseWriter, r *http.Request) {
	swap, err := h.swapSvc.GetSwapStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSwapInfo(swap))
}

func (h *Handler) txHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.swapSvc.TxHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txHistoryInfo{
		Sent:     toTxRecordsInfo(history.Sent),
		Received: toTxRecordsInfo(history.Received),
	})
}

func (h *Handler) swapLogs(w http.ResponseWriter, r *http.Request) {
	from, err := parseFrom(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	swap, err := h.swapSvc.GetSwapStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	entries := swap.LogsFrom(from)
	list := make([]logEntryInfo, 0, len(entries))
	for _, e := range entries {
		list = append(list, toLogEntryInfo(e))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": swap.Status.String(),
		"logs":   list,
	})
}

// streamSwapLogs pushes the log entries of a swap over a websocket until the
// swap reaches a terminal status or the client goes away.
func (h *Handler) streamSwapLogs(w http.ResponseWriter, r *http.Request) {
	from, err := parseFrom(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	swapID := chi.URLParam(r, "id")
	entries, err := h.swapSvc.SubscribeLogs(ctx, swapID, from)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Debug("http interface: websocket upgrade failed")
		return
	}
	defer conn.Close()

	// the client only ever closes the stream.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			deadline := time.Now().Add(wsWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case entry, ok := <-entries:
			//nolint:errcheck
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if !ok {
				//nolint:errcheck
				conn.WriteMessage(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "swap finalized"),
				)
				return
			}
			if err := conn.WriteJSON(toLogEntryInfo(entry)); err != nil {
				log.WithError(err).WithField("swap", swapID).Debug(
					"http interface: failed to push log entry",
				)
				return
			}
		}
	}
}

func (h *Handler) openOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.swapSvc.OpenOrders(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"orders": orders})
}

func (h *Handler) revealedSecret(w http.ResponseWriter, r *http.Request) {
	release, err := h.swapSvc.RevealedSecret(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSecretInfo(release))
}

func parseInitiateSwapRequest(req initiateSwapRequest) (orchestrator.InitiateSwapArgs, error) {
	sourceAmount, err := mathutil.ParseAmount(req.SourceAmount)
	if err != nil {
		return orchestrator.InitiateSwapArgs{}, fmt.Errorf("%w: %s", domain.ErrInvalidAmount, err)
	}

	var destinationAmount *big.Int
	if len(req.DestinationAmount) > 0 {
		destinationAmount, err = mathutil.ParseAmount(req.DestinationAmount)
		if err != nil {
			return orchestrator.InitiateSwapArgs{}, fmt.Errorf(
				"%w: %s", domain.ErrInvalidAmount, err,
			)
		}
	}

	return orchestrator.InitiateSwapArgs{
		SourceAmount:       sourceAmount,
		DestinationAmount:  destinationAmount,
		DestinationAddress: req.DestinationAddress,
		ReleasePolicy:      domain.ReleasePolicy(req.ReleasePolicy),
	}, nil
}

func parseFrom(r *http.Request) (int, error) {
	s := r.URL.Query().Get("from")
	if len(s) <= 0 {
		return 0, nil
	}
	from, err := strconv.Atoi(s)
	if err != nil || from < 0 {
		return 0, fmt.Errorf("invalid from %q", s)
	}
	return from, nil
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidDestinationAddress),
		errors.Is(err, domain.ErrInvalidSourceAddress),
		errors.Is(err, domain.ErrInvalidTimeLock),
		errors.Is(err, domain.ErrUnknownReleasePolicy):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrSwapNotFound),
		errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrSecretNotRevealed):
		status = http.StatusNotFound
	case errors.Is(err, errReadOnly):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrRateUnknown),
		errors.Is(err, orchestrator.ErrServiceNotStarted):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		log.WithError(err).Warn("http interface: request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Debug("http interface: failed to write response")
	}
}
