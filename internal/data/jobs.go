package data

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/zanopay/zano-deposit-watcher/internal/kvstore"
	"github.com/zanopay/zano-deposit-watcher/internal/utils"
)

// Job hash field names. Jobs are mutated with partial HSETs from several
// code paths, so every writer must spell these exactly the same way.
const (
	jobFieldTicker                 = "ticker"
	jobFieldAddress                = "address"
	jobFieldPaymentID              = "paymentId"
	jobFieldExpectedAmount         = "expectedAmount"
	jobFieldMinConf                = "minConf"
	jobFieldClientReference        = "clientReference"
	jobFieldCreatedAt              = "createdAt"
	jobFieldDynamicMinConfApplied  = "dynamicMinConfApplied"
	jobFieldWebhookSent            = "webhookSent"
	jobFieldWebhookAttempts        = "webhookAttempts"
	jobFieldWebhookFirstAttemptAt  = "webhookFirstAttemptAt"
	jobFieldWebhookLastAttemptAt   = "webhookLastAttemptAt"
	jobFieldWebhookNextAttemptAt   = "webhookNextAttemptAt"
	jobFieldWebhookLastError       = "webhookLastError"
	jobFieldConsolidationAttempted = "consolidationAttempted"
	jobFieldConsolidationTxID      = "consolidationTxId"
	jobFieldConsolidationError     = "consolidationError"
)

// maxStoredErrorLen caps recorded error text so a chatty upstream cannot
// bloat the job hash.
const maxStoredErrorLen = 500

// Job is an expected deposit registered through the intake API and driven to
// a terminal outcome by the watcher. It is stored as a KV hash so individual
// latches and retry fields can be flipped without rewriting the record.
// Attempt timestamps are unix milliseconds; zero means unset.
type Job struct {
	Ticker                 string
	Address                string
	PaymentID              string
	ExpectedAmount         string
	MinConf                int
	ClientReference        string
	CreatedAt              time.Time
	DynamicMinConfApplied  bool
	WebhookSent            bool
	WebhookAttempts        int
	WebhookFirstAttemptAt  int64
	WebhookLastAttemptAt   int64
	WebhookNextAttemptAt   int64
	WebhookLastError       string
	ConsolidationAttempted bool
	ConsolidationTxID      string
	ConsolidationError     string
}

// WebhookFailure carries the retry bookkeeping persisted after a failed
// dispatch. The caller computes the schedule; the model only stores it.
type WebhookFailure struct {
	Attempts       int
	FirstAttemptAt int64
	LastAttemptAt  int64
	NextAttemptAt  int64
	LastError      string
}

type JobModel struct {
	store     kvstore.Store
	keyPrefix string
	jobTTL    time.Duration
	nowFn     func() time.Time
}

func (m *JobModel) now() time.Time {
	if m.nowFn != nil {
		return m.nowFn()
	}
	return time.Now().UTC()
}

func (m *JobModel) Key(ticker, paymentID string) string {
	return JobKey(m.keyPrefix, ticker, paymentID)
}

func (m *JobModel) ScanPattern(ticker string) string {
	return JobScanPattern(m.keyPrefix, ticker)
}

// Create registers a new job and arms its TTL. ttl <= 0 falls back to the
// model default. Returns ErrRecordAlreadyExists when a live job already
// occupies the (ticker, paymentId) slot.
func (m *JobModel) Create(ctx context.Context, job *Job, ttl time.Duration) error {
	if job == nil {
		return fmt.Errorf("job is required")
	}
	if job.Ticker == "" || job.PaymentID == "" {
		return fmt.Errorf("ticker and paymentId are required")
	}
	if job.Address == "" {
		return fmt.Errorf("address is required")
	}

	key := m.Key(job.Ticker, job.PaymentID)
	exists, err := m.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("checking job %s: %w", key, err)
	}
	if exists {
		return ErrRecordAlreadyExists
	}

	if job.CreatedAt.IsZero() {
		job.CreatedAt = m.now()
	}
	if err = m.store.HSet(ctx, key, encodeJob(job)); err != nil {
		return fmt.Errorf("writing job %s: %w", key, err)
	}

	if ttl <= 0 {
		ttl = m.jobTTL
	}
	if err = m.store.Expire(ctx, key, ttl); err != nil {
		return fmt.Errorf("setting ttl on job %s: %w", key, err)
	}
	return nil
}

func (m *JobModel) Get(ctx context.Context, ticker, paymentID string) (*Job, error) {
	return m.GetByKey(ctx, m.Key(ticker, paymentID))
}

// GetByKey loads a job from a raw scanned key. An empty hash means the job
// expired between the scan and the read and maps to ErrRecordNotFound.
func (m *JobModel) GetByKey(ctx context.Context, key string) (*Job, error) {
	fields, err := m.store.HGetAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("reading job %s: %w", key, err)
	}
	if len(fields) == 0 {
		return nil, ErrRecordNotFound
	}
	return decodeJob(fields), nil
}

func (m *JobModel) Exists(ctx context.Context, ticker, paymentID string) (bool, error) {
	exists, err := m.store.Exists(ctx, m.Key(ticker, paymentID))
	if err != nil {
		return false, fmt.Errorf("checking job existence: %w", err)
	}
	return exists, nil
}

func (m *JobModel) Delete(ctx context.Context, ticker, paymentID string) error {
	if err := m.store.Del(ctx, m.Key(ticker, paymentID)); err != nil {
		return fmt.Errorf("deleting job: %w", err)
	}
	return nil
}

// SetPaymentID backfills the paymentId field on a job hash that predates it.
// The key already carries the id, so this only repairs the stored copy.
func (m *JobModel) SetPaymentID(ctx context.Context, ticker, paymentID string) error {
	err := m.store.HSet(ctx, m.Key(ticker, paymentID), map[string]string{jobFieldPaymentID: paymentID})
	if err != nil {
		return fmt.Errorf("backfilling paymentId: %w", err)
	}
	return nil
}

// ApplyDynamicMinConf persists the dynamically chosen threshold together
// with its latch in a single write, so the policy cannot run twice.
func (m *JobModel) ApplyDynamicMinConf(ctx context.Context, ticker, paymentID string, minConf int) error {
	fields := map[string]string{
		jobFieldMinConf:               strconv.Itoa(minConf),
		jobFieldDynamicMinConfApplied: "true",
	}
	if err := m.store.HSet(ctx, m.Key(ticker, paymentID), fields); err != nil {
		return fmt.Errorf("applying dynamic min-conf: %w", err)
	}
	return nil
}

// RecordConsolidationAttempt flips the single-shot sweep latch. Callers must
// persist it before issuing the transfer; a crash mid-sweep must never lead
// to a second spend.
func (m *JobModel) RecordConsolidationAttempt(ctx context.Context, ticker, paymentID string) error {
	err := m.store.HSet(ctx, m.Key(ticker, paymentID), map[string]string{jobFieldConsolidationAttempted: "true"})
	if err != nil {
		return fmt.Errorf("latching consolidation attempt: %w", err)
	}
	return nil
}

// RecordConsolidationOutcome stores the sweep result: the transfer tx id on
// success, the error text on failure.
func (m *JobModel) RecordConsolidationOutcome(ctx context.Context, ticker, paymentID, txID, errMsg string) error {
	fields := map[string]string{}
	if txID != "" {
		fields[jobFieldConsolidationTxID] = txID
	}
	if errMsg != "" {
		fields[jobFieldConsolidationError] = utils.ClampString(errMsg, maxStoredErrorLen)
	}
	if len(fields) == 0 {
		return nil
	}
	if err := m.store.HSet(ctx, m.Key(ticker, paymentID), fields); err != nil {
		return fmt.Errorf("recording consolidation outcome: %w", err)
	}
	return nil
}

// MarkWebhookDelivered latches webhookSent after a 2xx response and clears
// the retry schedule. The job is normally deleted right after; the persisted
// latch is what makes that deletion safe to crash out of.
func (m *JobModel) MarkWebhookDelivered(ctx context.Context, ticker, paymentID string) error {
	fields := map[string]string{
		jobFieldWebhookSent:          "true",
		jobFieldWebhookNextAttemptAt: "0",
		jobFieldWebhookLastError:     "",
	}
	if err := m.store.HSet(ctx, m.Key(ticker, paymentID), fields); err != nil {
		return fmt.Errorf("latching webhook delivery: %w", err)
	}
	return nil
}

// RecordWebhookFailure persists the retry bookkeeping after a failed
// dispatch attempt.
func (m *JobModel) RecordWebhookFailure(ctx context.Context, ticker, paymentID string, failure WebhookFailure) error {
	fields := map[string]string{
		jobFieldWebhookAttempts:       strconv.Itoa(failure.Attempts),
		jobFieldWebhookFirstAttemptAt: strconv.FormatInt(failure.FirstAttemptAt, 10),
		jobFieldWebhookLastAttemptAt:  strconv.FormatInt(failure.LastAttemptAt, 10),
		jobFieldWebhookNextAttemptAt:  strconv.FormatInt(failure.NextAttemptAt, 10),
		jobFieldWebhookLastError:      utils.ClampString(failure.LastError, maxStoredErrorLen),
	}
	if err := m.store.HSet(ctx, m.Key(ticker, paymentID), fields); err != nil {
		return fmt.Errorf("recording webhook failure: %w", err)
	}
	return nil
}

func encodeJob(job *Job) map[string]string {
	fields := map[string]string{
		jobFieldTicker:                 job.Ticker,
		jobFieldAddress:                job.Address,
		jobFieldPaymentID:              job.PaymentID,
		jobFieldMinConf:                strconv.Itoa(job.MinConf),
		jobFieldCreatedAt:              job.CreatedAt.UTC().Format(time.RFC3339),
		jobFieldDynamicMinConfApplied:  strconv.FormatBool(job.DynamicMinConfApplied),
		jobFieldWebhookSent:            strconv.FormatBool(job.WebhookSent),
		jobFieldWebhookAttempts:        strconv.Itoa(job.WebhookAttempts),
		jobFieldConsolidationAttempted: strconv.FormatBool(job.ConsolidationAttempted),
	}
	if job.ExpectedAmount != "" {
		fields[jobFieldExpectedAmount] = job.ExpectedAmount
	}
	if job.ClientReference != "" {
		fields[jobFieldClientReference] = job.ClientReference
	}
	if job.WebhookFirstAttemptAt > 0 {
		fields[jobFieldWebhookFirstAttemptAt] = strconv.FormatInt(job.WebhookFirstAttemptAt, 10)
	}
	if job.WebhookLastAttemptAt > 0 {
		fields[jobFieldWebhookLastAttemptAt] = strconv.FormatInt(job.WebhookLastAttemptAt, 10)
	}
	if job.WebhookNextAttemptAt > 0 {
		fields[jobFieldWebhookNextAttemptAt] = strconv.FormatInt(job.WebhookNextAttemptAt, 10)
	}
	if job.WebhookLastError != "" {
		fields[jobFieldWebhookLastError] = utils.ClampString(job.WebhookLastError, maxStoredErrorLen)
	}
	if job.ConsolidationTxID != "" {
		fields[jobFieldConsolidationTxID] = job.ConsolidationTxID
	}
	if job.ConsolidationError != "" {
		fields[jobFieldConsolidationError] = utils.ClampString(job.ConsolidationError, maxStoredErrorLen)
	}
	return fields
}

// decodeJob is deliberately forgiving: job hashes may have been written by
// older deployments, and a bad optional field must not take the job down.
// Missing required fields surface as zero values for the worker to act on.
func decodeJob(fields map[string]string) *Job {
	return &Job{
		Ticker:                 fields[jobFieldTicker],
		Address:                fields[jobFieldAddress],
		PaymentID:              fields[jobFieldPaymentID],
		ExpectedAmount:         fields[jobFieldExpectedAmount],
		MinConf:                parseIntField(fields[jobFieldMinConf]),
		ClientReference:        fields[jobFieldClientReference],
		CreatedAt:              parseTimeField(fields[jobFieldCreatedAt]),
		DynamicMinConfApplied:  parseBoolField(fields[jobFieldDynamicMinConfApplied]),
		WebhookSent:            parseBoolField(fields[jobFieldWebhookSent]),
		WebhookAttempts:        parseIntField(fields[jobFieldWebhookAttempts]),
		WebhookFirstAttemptAt:  parseMillisField(fields[jobFieldWebhookFirstAttemptAt]),
		WebhookLastAttemptAt:   parseMillisField(fields[jobFieldWebhookLastAttemptAt]),
		WebhookNextAttemptAt:   parseMillisField(fields[jobFieldWebhookNextAttemptAt]),
		WebhookLastError:       fields[jobFieldWebhookLastError],
		ConsolidationAttempted: parseBoolField(fields[jobFieldConsolidationAttempted]),
		ConsolidationTxID:      fields[jobFieldConsolidationTxID],
		ConsolidationError:     fields[jobFieldConsolidationError],
	}
}

func parseBoolField(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

func parseIntField(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func parseMillisField(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func parseTimeField(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
