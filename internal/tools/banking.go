package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/siddhartha9/interruption-aware-voice-bot/internal/toolcall"
	"github.com/siddhartha9/interruption-aware-voice-bot/pkg/types"
)

// defaultStepDelay paces the simulated backend steps of the demo tools.
const defaultStepDelay = 500 * time.Millisecond

// Deps bundles the shared services every built-in tool needs.
type Deps struct {
	Registry  *toolcall.Registry
	Scheduler *toolcall.Scheduler
	Log       *slog.Logger

	// StepDelay overrides the simulated backend latency. Zero means
	// defaultStepDelay. Tests set this to keep runs fast.
	StepDelay time.Duration
}

func (d Deps) stepDelay() time.Duration {
	if d.StepDelay > 0 {
		return d.StepDelay
	}
	return defaultStepDelay
}

func (d Deps) log() *slog.Logger {
	if d.Log != nil {
		return d.Log
	}
	return slog.Default()
}

// RegisterAll adds every built-in tool to catalog.
func RegisterAll(catalog *toolcall.Catalog, deps Deps) {
	catalog.Add(&CheckAccountBalance{deps: deps})
	catalog.Add(&EmailStatement{deps: deps})
	catalog.Add(&GetCurrentTime{deps: deps})
}

// sleepStep waits one simulated backend step, returning early on
// cancellation.
func sleepStep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// ─── check_account_balance ───────────────────────────────────────────────────

// CheckAccountBalance looks up an account balance. The lookup itself is slow
// (simulated core-banking query), so the tool answers immediately with a
// tracking handle and finishes in the background.
type CheckAccountBalance struct {
	deps Deps

	// OnResult, when set, receives the final balance text (tests).
	OnResult func(result string)
}

// Definition implements toolcall.Tool.
func (t *CheckAccountBalance) Definition() types.ToolDefinition {
	return types.ToolDefinition{
		Name:        "check_account_balance",
		Description: "Look up the current balance of the customer's account. Returns a tracking id; the balance is announced when the lookup completes.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"account_id": map[string]any{
					"type":        "string",
					"description": "Identifier of the account to query.",
				},
			},
			"required": []any{"account_id"},
		},
	}
}

// Invoke implements toolcall.Tool.
func (t *CheckAccountBalance) Invoke(_ context.Context, args string) (string, error) {
	var in struct {
		AccountID string `json:"account_id"`
	}
	if err := json.Unmarshal([]byte(args), &in); err != nil {
		return "", fmt.Errorf("check_account_balance: invalid args: %w", err)
	}
	if in.AccountID == "" {
		return "", fmt.Errorf("check_account_balance: account_id is required")
	}

	log := t.deps.log()
	id := runAsync(t.deps.Registry, t.deps.Scheduler, "check_account_balance",
		map[string]string{"account_id": in.AccountID},
		func(ctx context.Context) error {
			// Step 1: open the core-banking query.
			if err := sleepStep(ctx, t.deps.stepDelay()); err != nil {
				log.Info("balance lookup cancelled before query completed", "account_id", in.AccountID)
				return nil
			}
			// Step 2: fetch and format the result.
			if err := sleepStep(ctx, t.deps.stepDelay()); err != nil {
				log.Info("balance lookup cancelled before result delivery", "account_id", in.AccountID)
				return nil
			}
			result := fmt.Sprintf("Account %s balance: $2,847.13", in.AccountID)
			log.Info("balance lookup complete", "account_id", in.AccountID)
			if t.OnResult != nil {
				t.OnResult(result)
			}
			return nil
		})

	return fmt.Sprintf("Balance lookup for account %s started, tracking_id=%s. The result will be announced shortly.",
		in.AccountID, trackingID(id)), nil
}

// ─── email_statement ─────────────────────────────────────────────────────────

// EmailStatement generates and emails an account statement. Generation
// reserves a statement slot on the backend; if the tool is cancelled before
// delivery, the reservation is released as compensation.
type EmailStatement struct {
	deps Deps

	// Deliver performs the actual send. Nil means simulate with a step
	// delay. Tests inject a recorder here.
	Deliver func(ctx context.Context, email string) error

	// OnCompensate, when set, is called when a cancelled run releases its
	// reservation (tests).
	OnCompensate func()
}

// Definition implements toolcall.Tool.
func (t *EmailStatement) Definition() types.ToolDefinition {
	return types.ToolDefinition{
		Name:        "email_statement",
		Description: "Generate the customer's account statement and email it to the given address. Returns a tracking id immediately; delivery continues in the background.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"email": map[string]any{
					"type":        "string",
					"description": "Destination email address.",
				},
			},
			"required": []any{"email"},
		},
	}
}

// Invoke implements toolcall.Tool.
func (t *EmailStatement) Invoke(_ context.Context, args string) (string, error) {
	var in struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal([]byte(args), &in); err != nil {
		return "", fmt.Errorf("email_statement: invalid args: %w", err)
	}
	if in.Email == "" {
		return "", fmt.Errorf("email_statement: email is required")
	}

	log := t.deps.log()
	id := runAsync(t.deps.Registry, t.deps.Scheduler, "email_statement",
		map[string]string{"email": in.Email},
		func(ctx context.Context) error {
			// Step 1: reserve a statement-generation slot.
			if err := sleepStep(ctx, t.deps.stepDelay()); err != nil {
				log.Info("statement cancelled before reservation", "email", in.Email)
				return nil
			}
			reserved := true

			// Step 2: generate the statement.
			if err := sleepStep(ctx, t.deps.stepDelay()); err != nil {
				t.compensate(log, in.Email, &reserved)
				return nil
			}

			// Step 3: deliver.
			deliver := t.Deliver
			if deliver == nil {
				deliver = func(ctx context.Context, _ string) error {
					return sleepStep(ctx, t.deps.stepDelay())
				}
			}
			if err := deliver(ctx, in.Email); err != nil {
				t.compensate(log, in.Email, &reserved)
				if ctx.Err() == nil {
					return fmt.Errorf("email_statement: deliver: %w", err)
				}
				return nil
			}

			log.Info("statement delivered", "email", in.Email)
			return nil
		})

	return fmt.Sprintf("Statement emailing to %s started, tracking_id=%s. You will receive it within a minute.",
		in.Email, trackingID(id)), nil
}

// compensate releases the reserved statement slot after a cancelled or
// failed run.
func (t *EmailStatement) compensate(log *slog.Logger, email string, reserved *bool) {
	if !*reserved {
		return
	}
	*reserved = false
	log.Info("statement reservation released", "email", email)
	if t.OnCompensate != nil {
		t.OnCompensate()
	}
}

// ─── get_current_time ────────────────────────────────────────────────────────

// GetCurrentTime reports the server's current time. It completes
// synchronously but still registers with the in-flight registry for the
// duration of the call, like every other tool.
type GetCurrentTime struct {
	deps Deps

	// Now overrides the clock (tests).
	Now func() time.Time
}

// Definition implements toolcall.Tool.
func (t *GetCurrentTime) Definition() types.ToolDefinition {
	return types.ToolDefinition{
		Name:        "get_current_time",
		Description: "Get the current date and time.",
		Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
	}
}

// Invoke implements toolcall.Tool.
func (t *GetCurrentTime) Invoke(ctx context.Context, _ string) (string, error) {
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	id := t.deps.Registry.Register("get_current_time", cancel, nil)
	defer t.deps.Registry.Unregister(id)

	if err := callCtx.Err(); err != nil {
		return "", err
	}

	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	return now().Format("Monday, January 2, 2006 at 3:04 PM MST"), nil
}

var (
	_ toolcall.Tool = (*CheckAccountBalance)(nil)
	_ toolcall.Tool = (*EmailStatement)(nil)
	_ toolcall.Tool = (*GetCurrentTime)(nil)
)
