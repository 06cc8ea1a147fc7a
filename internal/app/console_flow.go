package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/lotvend/lotvend/internal/domain"
)

type consoleState int

const (
	stateIdle consoleState = iota
	stateAwaitingLotSpec
	stateAwaitingCredential
	stateAwaitingPrice
	stateAwaitingDelete
	stateAwaitingManualConfirm
)

type consoleSession struct {
	state consoleState
	lotID int64
	added int
}

// ConsoleFlow is the operator's free-text console: a per-user state machine
// that walks multi-step lot operations (create, restock, reprice, delete,
// manual payment confirmation) one message at a time.
type ConsoleFlow struct {
	catalog    *CatalogService
	reconciler *Reconciler

	mu       sync.Mutex
	sessions map[int64]*consoleSession
}

func NewConsoleFlow(catalog *CatalogService, reconciler *Reconciler) *ConsoleFlow {
	return &ConsoleFlow{
		catalog:    catalog,
		reconciler: reconciler,
		sessions:   make(map[int64]*consoleSession),
	}
}

// Handle consumes one operator message and returns the reply. Only
// infrastructure failures surface as errors; protocol mistakes (bad price,
// unknown lot) come back as reply text so the session stays recoverable.
func (f *ConsoleFlow) Handle(ctx context.Context, userID int64, text string) (string, error) {
	text = strings.TrimSpace(text)

	// Session state is read and written throughout the exchange, so the
	// whole message is handled under the lock; console traffic is a few
	// operator messages, never a hot path.
	f.mu.Lock()
	defer f.mu.Unlock()

	sess := f.sessions[userID]
	if sess == nil {
		sess = &consoleSession{}
		f.sessions[userID] = sess
	}

	if strings.EqualFold(text, "cancel") {
		f.reset(userID)
		return "Cancelled.", nil
	}

	switch sess.state {
	case stateIdle:
		return f.handleCommand(sess, text)
	case stateAwaitingLotSpec:
		return f.handleLotSpec(ctx, userID, text)
	case stateAwaitingCredential:
		return f.handleCredential(ctx, userID, sess, text)
	case stateAwaitingPrice:
		return f.handlePrice(ctx, userID, sess, text)
	case stateAwaitingDelete:
		return f.handleDelete(ctx, userID, text)
	case stateAwaitingManualConfirm:
		return f.handleManualConfirm(ctx, userID, text)
	}
	f.reset(userID)
	return "Session reset. Send a command.", nil
}

func (f *ConsoleFlow) handleCommand(sess *consoleSession, text string) (string, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "Commands: newlot, addstock <lot>, setprice <lot>, deletelot, confirm", nil
	}
	switch strings.ToLower(fields[0]) {
	case "newlot":
		sess.state = stateAwaitingLotSpec
		return "Send the lot as: name|price", nil
	case "addstock":
		if len(fields) < 2 {
			return "Usage: addstock <lot id>", nil
		}
		id, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return "Lot id must be a number.", nil
		}
		sess.state = stateAwaitingCredential
		sess.lotID = id
		sess.added = 0
		return fmt.Sprintf("Adding stock to lot #%d. One credential per message; send \"done\" to finish.", id), nil
	case "setprice":
		if len(fields) < 2 {
			return "Usage: setprice <lot id>", nil
		}
		id, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return "Lot id must be a number.", nil
		}
		sess.state = stateAwaitingPrice
		sess.lotID = id
		return fmt.Sprintf("Send the new price for lot #%d.", id), nil
	case "deletelot":
		sess.state = stateAwaitingDelete
		return "Send the id of the lot to delete.", nil
	case "confirm":
		sess.state = stateAwaitingManualConfirm
		return "Send: <lot id> <buyer username>", nil
	default:
		return "Commands: newlot, addstock <lot>, setprice <lot>, deletelot, confirm", nil
	}
}

func (f *ConsoleFlow) handleLotSpec(ctx context.Context, userID int64, text string) (string, error) {
	name, priceStr, ok := strings.Cut(text, "|")
	if !ok {
		return "Expected name|price.", nil
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(priceStr), 64)
	if err != nil {
		return "Price must be a number.", nil
	}
	id, err := f.catalog.CreateLot(ctx, name, price)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrLotNameRequired):
			return "Lot name must not be empty.", nil
		case errors.Is(err, domain.ErrInvalidPrice):
			return "Price must be positive.", nil
		}
		return "", err
	}
	f.reset(userID)
	return fmt.Sprintf("Lot #%d created. Use addstock %d to load credentials.", id, id), nil
}

func (f *ConsoleFlow) handleCredential(ctx context.Context, userID int64, sess *consoleSession, text string) (string, error) {
	if strings.EqualFold(text, "done") {
		added := sess.added
		f.reset(userID)
		return fmt.Sprintf("Done: %d credential(s) added.", added), nil
	}
	res, err := f.catalog.Replenish(ctx, sess.lotID, text)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrLotNotFound):
			f.reset(userID)
			return "That lot does not exist.", nil
		case errors.Is(err, domain.ErrCredentialRequired):
			return "Empty message; send the credential text.", nil
		}
		return "", err
	}
	sess.added++
	reply := fmt.Sprintf("Added (%d so far).", sess.added)
	if n := len(res.Served); n > 0 {
		reply += fmt.Sprintf(" Served %d waiting buyer(s).", n)
	}
	return reply, nil
}

func (f *ConsoleFlow) handlePrice(ctx context.Context, userID int64, sess *consoleSession, text string) (string, error) {
	price, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return "Price must be a number.", nil
	}
	if err := f.catalog.SetPrice(ctx, sess.lotID, price); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidPrice):
			return "Price must be positive.", nil
		case errors.Is(err, domain.ErrLotNotFound):
			f.reset(userID)
			return "That lot does not exist.", nil
		}
		return "", err
	}
	lotID := sess.lotID
	f.reset(userID)
	return fmt.Sprintf("Lot #%d price set to %s.", lotID, strconv.FormatFloat(price, 'f', -1, 64)), nil
}

func (f *ConsoleFlow) handleDelete(ctx context.Context, userID int64, text string) (string, error) {
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return "Lot id must be a number.", nil
	}
	dropped, err := f.catalog.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrLotNotFound) {
			f.reset(userID)
			return "That lot does not exist.", nil
		}
		return "", err
	}
	f.reset(userID)
	if dropped > 0 {
		return fmt.Sprintf("Lot #%d deleted. %d queued buyer(s) were dropped.", id, dropped), nil
	}
	return fmt.Sprintf("Lot #%d deleted.", id), nil
}

func (f *ConsoleFlow) handleManualConfirm(ctx context.Context, userID int64, text string) (string, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return "Expected: <lot id> <buyer username>", nil
	}
	lotID, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return "Lot id must be a number.", nil
	}
	res, err := f.reconciler.OnManualConfirm(ctx, lotID, fields[1])
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			return "No pending manual payment for that buyer and lot.", nil
		}
		return "", err
	}
	f.reset(userID)
	switch res.Outcome {
	case OutcomeDelivered:
		return fmt.Sprintf("Confirmed: credential #%d delivered.", res.Delivery.CredentialID), nil
	case OutcomeQueued:
		return fmt.Sprintf("Confirmed, but the lot is empty; buyer queued at position %d.", res.QueuePosition), nil
	case OutcomeNoop:
		return "That payment was already settled.", nil
	default:
		return "Payment is still pending.", nil
	}
}

// reset drops the session; the caller holds f.mu.
func (f *ConsoleFlow) reset(userID int64) {
	delete(f.sessions, userID)
}
