package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"event-rewards-service/internal/app"
	"event-rewards-service/internal/domain"
)

// Ledger keeps balances in Redis. The check, the idempotency-key claim,
// and the balance change run inside one Lua script, so a mutation is
// indivisible even across service instances.
//
// Keys:
//
//	ledger:{pid}:balance   integer balance
//	ledger:{pid}:ref:{ref} claim marker for a committed reference id
//	ledger:{pid}:history   list of transaction JSON, newest first
type Ledger struct {
	client *redis.Client
	sink   app.AuditSink
	clock  func() time.Time
}

// creditScript returns {balance, applied}. applied=0 means the
// reference id already committed and the call was a no-op.
var creditScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 1 then
  return {tonumber(redis.call('GET', KEYS[1]) or '0'), 0}
end
local bal = redis.call('INCRBY', KEYS[1], tonumber(ARGV[1]))
redis.call('SET', KEYS[2], bal)
return {bal, 1}
`)

// debitScript returns {balance, applied}. applied=-1 signals
// insufficient funds; the balance is untouched.
var debitScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 1 then
  return {tonumber(redis.call('GET', KEYS[1]) or '0'), 0}
end
local bal = tonumber(redis.call('GET', KEYS[1]) or '0')
local amount = tonumber(ARGV[1])
if bal < amount then
  return {bal, -1}
end
bal = redis.call('DECRBY', KEYS[1], amount)
redis.call('SET', KEYS[2], bal)
return {bal, 1}
`)

func NewLedger(client *redis.Client, sink app.AuditSink) *Ledger {
	return &Ledger{client: client, sink: sink, clock: time.Now}
}

func (l *Ledger) balanceKey(pid string) string { return "ledger:" + pid + ":balance" }
func (l *Ledger) refKey(pid, ref string) string {
	return "ledger:" + pid + ":ref:" + ref
}
func (l *Ledger) historyKey(pid string) string { return "ledger:" + pid + ":history" }

func (l *Ledger) Credit(ctx context.Context, participantID string, amount int, reason domain.TxReason, referenceID string) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("credit amount must be positive, got %d", amount)
	}
	return l.run(ctx, creditScript, participantID, amount, amount, reason, referenceID)
}

func (l *Ledger) Debit(ctx context.Context, participantID string, amount int, reason domain.TxReason, referenceID string) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("debit amount must be positive, got %d", amount)
	}
	return l.run(ctx, debitScript, participantID, amount, -amount, reason, referenceID)
}

func (l *Ledger) run(ctx context.Context, script *redis.Script, participantID string, amount, delta int, reason domain.TxReason, referenceID string) (int, error) {
	keys := []string{l.balanceKey(participantID), l.refKey(participantID, referenceID)}
	raw, err := script.Run(ctx, l.client, keys, amount).Result()
	if err != nil {
		return 0, fmt.Errorf("ledger script: %w", err)
	}

	balance, applied, err := parseScriptReply(raw)
	if err != nil {
		return 0, fmt.Errorf("ledger script: %w", err)
	}

	switch applied {
	case -1:
		return balance, domain.ErrInsufficientFunds
	case 0:
		// Replay: already committed, nothing more to record.
		return balance, nil
	}

	tx := domain.LedgerTransaction{
		ParticipantID: participantID,
		Delta:         delta,
		Reason:        reason,
		ReferenceID:   referenceID,
		Balance:       balance,
		At:            l.clock(),
	}
	data, err := json.Marshal(tx)
	if err != nil {
		return balance, fmt.Errorf("marshal transaction: %w", err)
	}
	if err := l.client.LPush(ctx, l.historyKey(participantID), data).Err(); err != nil {
		return balance, fmt.Errorf("append history: %w", err)
	}

	if l.sink != nil {
		l.sink.Record(ctx, domain.AuditRecord{
			ParticipantID: tx.ParticipantID,
			Delta:         tx.Delta,
			Reason:        tx.Reason,
			ReferenceID:   tx.ReferenceID,
			Balance:       tx.Balance,
			At:            tx.At,
		})
	}
	return balance, nil
}

// parseScriptReply decodes the {balance, applied} pair the Lua scripts
// return. Both elements must be integers; anything else is an error,
// not a panic.
func parseScriptReply(raw interface{}) (int, int64, error) {
	reply, ok := raw.([]interface{})
	if !ok || len(reply) != 2 {
		return 0, 0, fmt.Errorf("unexpected reply %v", raw)
	}
	balance, ok := reply[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected balance %v (%T)", reply[0], reply[0])
	}
	applied, ok := reply[1].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected applied flag %v (%T)", reply[1], reply[1])
	}
	return int(balance), applied, nil
}

func (l *Ledger) Balance(ctx context.Context, participantID string) (int, error) {
	balance, err := l.client.Get(ctx, l.balanceKey(participantID)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return balance, nil
}

func (l *Ledger) History(ctx context.Context, participantID string) ([]domain.LedgerTransaction, error) {
	entries, err := l.client.LRange(ctx, l.historyKey(participantID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	out := make([]domain.LedgerTransaction, 0, len(entries))
	for _, entry := range entries {
		var tx domain.LedgerTransaction
		if err := json.Unmarshal([]byte(entry), &tx); err != nil {
			return nil, fmt.Errorf("unmarshal transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, nil
}
