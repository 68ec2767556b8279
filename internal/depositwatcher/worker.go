package depositwatcher

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/zanopay/zano-deposit-watcher/internal/amount"
	"github.com/zanopay/zano-deposit-watcher/internal/crashtracker"
	"github.com/zanopay/zano-deposit-watcher/internal/data"
	"github.com/zanopay/zano-deposit-watcher/internal/monitor"
	"github.com/zanopay/zano-deposit-watcher/internal/utils"
	"github.com/zanopay/zano-deposit-watcher/internal/wallet"
	"github.com/zanopay/zano-deposit-watcher/internal/webhook"
)

// JobOutcome summarizes what one state-machine invocation did with a job.
type JobOutcome string

const (
	OutcomeSkipped        JobOutcome = "skipped"
	OutcomeMalformed      JobOutcome = "malformed"
	OutcomeNoObservation  JobOutcome = "no_observation"
	OutcomeConfirming     JobOutcome = "confirming"
	OutcomeAlreadySeen    JobOutcome = "already_seen"
	OutcomeCleanedUp      JobOutcome = "cleaned_up"
	OutcomeWindowExpired  JobOutcome = "window_expired"
	OutcomeHeld           JobOutcome = "held"
	OutcomeBackingOff     JobOutcome = "backing_off"
	OutcomeCompleted      JobOutcome = "completed"
	OutcomeRetryScheduled JobOutcome = "retry_scheduled"
)

// Worker drives one job at a time through the deposit state machine. It is
// the single writer to the jobs it touches; the scheduler invokes it once
// per job per pass.
type Worker struct {
	models             *data.Models
	matcher            *Matcher
	consolidator       *Consolidator
	dispatcher         webhook.DispatcherInterface
	crashTrackerClient crashtracker.CrashTrackerClient
	monitorService     monitor.MonitorServiceInterface
	cfg                Config

	nowFn func() time.Time
}

func NewWorker(
	models *data.Models,
	walletClient wallet.ClientInterface,
	dispatcher webhook.DispatcherInterface,
	crashTrackerClient crashtracker.CrashTrackerClient,
	monitorService monitor.MonitorServiceInterface,
	cfg Config,
) (Worker, error) {
	if models == nil {
		return Worker{}, fmt.Errorf("models cannot be nil")
	}
	if walletClient == nil {
		return Worker{}, fmt.Errorf("walletClient cannot be nil")
	}
	if dispatcher == nil {
		return Worker{}, fmt.Errorf("dispatcher cannot be nil")
	}
	if crashTrackerClient == nil {
		return Worker{}, fmt.Errorf("crashTrackerClient cannot be nil")
	}
	if monitorService == nil {
		return Worker{}, fmt.Errorf("monitorService cannot be nil")
	}

	matcher, err := NewMatcher(walletClient, int(cfg.ScanCount))
	if err != nil {
		return Worker{}, fmt.Errorf("initializing matcher: %w", err)
	}
	consolidator, err := NewConsolidator(walletClient)
	if err != nil {
		return Worker{}, fmt.Errorf("initializing consolidator: %w", err)
	}

	return Worker{
		models:             models,
		matcher:            matcher,
		consolidator:       consolidator,
		dispatcher:         dispatcher,
		crashTrackerClient: crashTrackerClient,
		monitorService:     monitorService,
		cfg:                cfg,
	}, nil
}

func (w Worker) now() time.Time {
	if w.nowFn != nil {
		return w.nowFn()
	}
	return time.Now().UTC()
}

// ProcessJob runs one state-machine invocation for the job stored under
// jobKey. chainInfo is the wallet view fetched once for the enclosing ticker
// pass. Errors wrapping *wallet.RPCError abort the whole pass upstream;
// everything else only affects this job.
func (w Worker) ProcessJob(ctx context.Context, ticker, jobKey string, chainInfo *wallet.WalletInfo) (JobOutcome, error) {
	job, err := w.models.Jobs.GetByKey(ctx, jobKey)
	if errors.Is(err, data.ErrRecordNotFound) {
		// Expired between the scan and the read.
		return OutcomeSkipped, nil
	}
	if err != nil {
		return "", fmt.Errorf("loading job %s: %w", jobKey, err)
	}

	if job.Address == "" {
		log.Ctx(ctx).Warnf("Deleting malformed job %s: no address", jobKey)
		if delErr := w.models.Store.Del(ctx, jobKey); delErr != nil {
			return "", fmt.Errorf("deleting malformed job %s: %w", jobKey, delErr)
		}
		return OutcomeMalformed, nil
	}

	if job.PaymentID == "" {
		backfilled, backfillErr := w.backfillPaymentID(ctx, ticker, jobKey, job)
		if backfillErr != nil {
			return "", backfillErr
		}
		if !backfilled {
			log.Ctx(ctx).Debugf("Job %s has no paymentId yet, skipping RPC", jobKey)
			return OutcomeSkipped, nil
		}
	}

	ctx = w.updateContextLogger(ctx, ticker, job)

	observations, err := w.matcher.Match(ctx, job, w.cfg.AssetIDFor(ticker), chainInfo.CurrentHeight)
	if err != nil {
		return "", fmt.Errorf("matching deposits for job %s: %w", jobKey, err)
	}
	best := BestObservation(observations)
	if best == nil {
		return OutcomeNoObservation, nil
	}
	w.recordLedgerObservation(ctx, ticker, job, best)

	if !job.DynamicMinConfApplied {
		if err = w.applyDynamicMinConf(ctx, ticker, job, best); err != nil {
			return "", err
		}
	}

	minConf := job.MinConf
	if minConf <= 0 {
		minConf = w.cfg.MinConfFor(ticker)
	}

	if best.Confirmations < int64(minConf) {
		if err = w.refreshConfirming(ctx, ticker, job, best, minConf); err != nil {
			return "", err
		}
		return OutcomeConfirming, nil
	}
	confirmed := best

	// The seen guard runs before the payload is built: a restart racing the
	// dedup write must not lead to a second settlement for the same hash.
	seen, err := w.models.Seen.IsSeen(ctx, confirmed.Hash)
	if err != nil {
		return "", fmt.Errorf("checking seen guard for %s: %w", confirmed.Hash, err)
	}
	if seen {
		if err = w.models.Jobs.Delete(ctx, ticker, job.PaymentID); err != nil {
			return "", fmt.Errorf("deleting job %s after seen hit: %w", jobKey, err)
		}
		return OutcomeAlreadySeen, nil
	}

	payload := w.buildPayload(ticker, job, confirmed, minConf)
	w.maybeConsolidate(ctx, ticker, job, confirmed, &payload)

	// Crash recovery: the webhook already went out on an earlier pass that
	// died before the cleanup writes landed.
	if job.WebhookSent {
		if err = w.finalizeDelivered(ctx, ticker, job, confirmed.Hash); err != nil {
			return "", err
		}
		return OutcomeCleanedUp, nil
	}

	now := w.now()
	nowMs := now.UnixMilli()
	if job.WebhookFirstAttemptAt > 0 && nowMs-job.WebhookFirstAttemptAt > w.cfg.WebhookMaxRetryWindow.Milliseconds() {
		if err = w.failJob(ctx, ticker, job, confirmed, minConf); err != nil {
			return "", err
		}
		return OutcomeWindowExpired, nil
	}
	if w.cfg.WebhookMaxAttempts > 0 && job.WebhookAttempts >= w.cfg.WebhookMaxAttempts {
		log.Ctx(ctx).Warnf("Job %s exhausted %d webhook attempts, holding for manual intervention", jobKey, job.WebhookAttempts)
		return OutcomeHeld, nil
	}

	if job.WebhookNextAttemptAt > nowMs {
		return OutcomeBackingOff, nil
	}

	// Refresh the client-visible state right before the attempt.
	if err = w.refreshConfirming(ctx, ticker, job, confirmed, minConf); err != nil {
		return "", err
	}

	payload.CompletedAt = now.UTC().Format(time.RFC3339)
	result := w.dispatcher.Dispatch(ctx, w.cfg.WebhookURLFor(ticker), w.cfg.WebhookSecret, payload)
	if result.OK {
		w.monitorWebhookCounter(ctx, ticker, monitor.WebhookResultDeliveredLabel)
		if err = w.completeJob(ctx, ticker, job, confirmed, minConf, payload); err != nil {
			return "", err
		}
		return OutcomeCompleted, nil
	}

	w.monitorWebhookCounter(ctx, ticker, monitor.WebhookResultFailedLabel)
	if err = w.recordFailedDispatch(ctx, ticker, job, nowMs, result); err != nil {
		return "", err
	}
	if err = w.refreshConfirming(ctx, ticker, job, confirmed, minConf); err != nil {
		return "", err
	}
	return OutcomeRetryScheduled, nil
}

// updateContextLogger attaches the job coordinates to the context logger so
// every line below carries them.
func (w Worker) updateContextLogger(ctx context.Context, ticker string, job *data.Job) context.Context {
	labels := map[string]interface{}{
		"ticker":     ticker,
		"payment_id": job.PaymentID,
		"address":    job.Address,
	}
	if job.ClientReference != "" {
		labels["client_reference"] = job.ClientReference
	}
	return log.Set(ctx, log.Ctx(ctx).WithFields(labels))
}

// backfillPaymentID repairs job hashes written before the paymentId field
// existed. The id is recovered from the key and only trusted when a status
// record confirms it.
func (w Worker) backfillPaymentID(ctx context.Context, ticker, jobKey string, job *data.Job) (bool, error) {
	paymentID := data.PaymentIDFromJobKey(jobKey)
	if paymentID == "" {
		return false, nil
	}

	_, err := w.models.Statuses.Get(ctx, ticker, paymentID)
	if errors.Is(err, data.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading status for paymentId backfill of %s: %w", jobKey, err)
	}

	if err = w.models.Jobs.SetPaymentID(ctx, ticker, paymentID); err != nil {
		return false, fmt.Errorf("backfilling paymentId on %s: %w", jobKey, err)
	}
	job.PaymentID = paymentID
	log.Ctx(ctx).Infof("Backfilled paymentId %s onto job %s", paymentID, jobKey)
	return true, nil
}

func (w Worker) recordLedgerObservation(ctx context.Context, ticker string, job *data.Job, best *wallet.DepositObservation) {
	err := w.models.Ledger.UpsertObservation(ctx, data.LedgerObservation{
		Ticker:        ticker,
		TxHash:        best.Hash,
		PaymentID:     job.PaymentID,
		Address:       job.Address,
		AmountAtomic:  best.AmountAtomic.String(),
		Confirmations: best.Confirmations,
	})
	if err != nil {
		log.Ctx(ctx).Warnf("Recording ledger observation for %s/%s: %v", ticker, job.PaymentID, err)
	}
}

// applyDynamicMinConf recomputes the threshold from the observed amount the
// first time the matcher reports anything, unless the deposit already
// completed through the callback path. The latch and the new value land in a
// single write.
func (w Worker) applyDynamicMinConf(ctx context.Context, ticker string, job *data.Job, best *wallet.DepositObservation) error {
	current, err := w.models.Statuses.Get(ctx, ticker, job.PaymentID)
	if err != nil && !errors.Is(err, data.ErrRecordNotFound) {
		return fmt.Errorf("reading status before applying dynamic min-conf: %w", err)
	}
	if current != nil && current.Status == data.CompletedStatus {
		return nil
	}

	minConf := DynamicMinConf(best.AmountAtomic, w.cfg.DecimalsFor(ticker))
	if err = w.models.Jobs.ApplyDynamicMinConf(ctx, ticker, job.PaymentID, minConf); err != nil {
		return fmt.Errorf("applying dynamic min-conf for %s/%s: %w", ticker, job.PaymentID, err)
	}
	if minConf != job.MinConf {
		log.Ctx(ctx).Infof("Dynamic confirmation policy set minConf=%d for %s/%s (was %d)", minConf, ticker, job.PaymentID, job.MinConf)
	}
	job.MinConf = minConf
	job.DynamicMinConfApplied = true
	return nil
}

// statusFor builds the canonical status record for an observation. Effective
// amounts start equal to the gross pair; completion overrides them when a
// sweep fee applied.
func (w Worker) statusFor(state data.StatusState, ticker string, job *data.Job, obs *wallet.DepositObservation, minConf int) *data.Status {
	atomicStr := obs.AmountAtomic.String()
	decimalStr, err := amount.FormatAtomic(obs.AmountAtomic, w.cfg.DecimalsFor(ticker))
	if err != nil {
		decimalStr = ""
	}
	return &data.Status{
		Status:                state,
		Ticker:                ticker,
		Address:               job.Address,
		PaymentID:             job.PaymentID,
		ClientReference:       job.ClientReference,
		Confirmations:         obs.Confirmations,
		RequiredConfirmations: minConf,
		Hash:                  obs.Hash,
		PaidAmount:            decimalStr,
		PaidAmountAtomic:      atomicStr,
		EffectiveAmount:       decimalStr,
		EffectiveAmountAtomic: atomicStr,
		CreatedAt:             job.CreatedAt,
	}
}

// refreshConfirming writes the CONFIRMING view clients poll while the
// deposit waits for confirmations or webhook delivery.
func (w Worker) refreshConfirming(ctx context.Context, ticker string, job *data.Job, obs *wallet.DepositObservation, minConf int) error {
	status := w.statusFor(data.ConfirmingStatus, ticker, job, obs, minConf)
	if err := w.models.Statuses.Upsert(ctx, status); err != nil {
		return fmt.Errorf("refreshing CONFIRMING status for %s/%s: %w", ticker, job.PaymentID, err)
	}
	return nil
}

// buildPayload assembles the canonical webhook body for a confirmed
// observation. Amounts start gross; a successful consolidation rewrites the
// fee and the effective pair.
func (w Worker) buildPayload(ticker string, job *data.Job, confirmed *wallet.DepositObservation, minConf int) webhook.Payload {
	atomicStr := confirmed.AmountAtomic.String()
	decimalStr, err := amount.FormatAtomic(confirmed.AmountAtomic, w.cfg.DecimalsFor(ticker))
	if err != nil {
		decimalStr = ""
	}

	payload := webhook.Payload{
		Event:                 webhook.EventDepositCompleted,
		Ticker:                ticker,
		PaymentID:             job.PaymentID,
		Address:               job.Address,
		Hash:                  confirmed.Hash,
		Amount:                decimalStr,
		AmountAtomic:          atomicStr,
		PaidAmount:            decimalStr,
		PaidAmountAtomic:      atomicStr,
		EffectiveAmount:       decimalStr,
		EffectiveAmountAtomic: atomicStr,
		Confirmations:         confirmed.Confirmations,
		RequiredConfirmations: minConf,
		ClientReference:       job.ClientReference,
	}
	if !job.CreatedAt.IsZero() {
		payload.CreatedAt = job.CreatedAt.UTC().Format(time.RFC3339)
	}
	return payload
}

// maybeConsolidate runs the single-shot treasury sweep when the ticker has
// an enabled rule. The attempt latch is persisted before the transfer goes
// out; sweep failures are recorded on the job and never block settlement.
func (w Worker) maybeConsolidate(ctx context.Context, ticker string, job *data.Job, confirmed *wallet.DepositObservation, payload *webhook.Payload) {
	rule, ok := w.cfg.RuleFor(ticker)
	if !ok || !rule.Enabled {
		return
	}
	if job.ConsolidationAttempted {
		// A sweep from an earlier pass already charged the fee; retried
		// webhooks keep reporting net amounts.
		if job.ConsolidationTxID != "" {
			w.applyConsolidationFee(payload, rule, w.cfg.DecimalsFor(ticker))
		}
		return
	}
	if confirmed.Confirmations < int64(rule.MinConfirmations) {
		log.Ctx(ctx).Debugf("Deferring consolidation for %s/%s: %d of %d confirmations", ticker, job.PaymentID, confirmed.Confirmations, rule.MinConfirmations)
		return
	}

	if err := w.models.Jobs.RecordConsolidationAttempt(ctx, ticker, job.PaymentID); err != nil {
		// Without the persisted latch no transfer may go out. The next pass
		// retries from scratch.
		w.crashTrackerClient.LogAndReportErrors(ctx, err, "persisting consolidation latch")
		return
	}
	job.ConsolidationAttempted = true

	txID, err := w.consolidator.Sweep(ctx, rule, *confirmed)
	if err != nil {
		log.Ctx(ctx).Errorf("Consolidation sweep failed for %s/%s: %v", ticker, job.PaymentID, err)
		if recErr := w.models.Jobs.RecordConsolidationOutcome(ctx, ticker, job.PaymentID, "", err.Error()); recErr != nil {
			log.Ctx(ctx).Errorf("Recording consolidation failure for %s/%s: %v", ticker, job.PaymentID, recErr)
		}
		return
	}

	log.Ctx(ctx).Infof("Consolidated %s/%s to treasury: tx %s", ticker, job.PaymentID, utils.TruncateString(txID, 8))
	job.ConsolidationTxID = txID
	if err = w.models.Jobs.RecordConsolidationOutcome(ctx, ticker, job.PaymentID, txID, ""); err != nil {
		log.Ctx(ctx).Errorf("Recording consolidation outcome for %s/%s: %v", ticker, job.PaymentID, err)
	}
	w.applyConsolidationFee(payload, rule, w.cfg.DecimalsFor(ticker))
}

// applyConsolidationFee rewrites the payload's effective pair to be net of
// the sweep fee. The gross (paid) amounts are untouched.
func (w Worker) applyConsolidationFee(payload *webhook.Payload, rule ConsolidationRule, decimals int) {
	if rule.FeeAtomic == "" {
		return
	}
	fee, err := amount.ParseAtomic(rule.FeeAtomic)
	if err != nil || fee.Sign() <= 0 {
		return
	}
	paid, err := amount.ParseAtomic(payload.PaidAmountAtomic)
	if err != nil {
		return
	}

	effective := new(big.Int).Sub(paid, fee)
	if effective.Sign() < 0 {
		effective.SetInt64(0)
	}

	payload.FeeAtomic = utils.StringPtr(fee.String())
	payload.EffectiveAmountAtomic = effective.String()
	if formatted, formatErr := amount.FormatAtomic(effective, decimals); formatErr == nil {
		payload.EffectiveAmount = formatted
	}
}

// finalizeDelivered cleans up a job whose webhook already went out on an
// earlier pass that crashed before the seen mark or the deletion landed.
func (w Worker) finalizeDelivered(ctx context.Context, ticker string, job *data.Job, hash string) error {
	if err := w.models.Seen.Mark(ctx, hash); err != nil {
		return fmt.Errorf("marking %s seen during cleanup: %w", hash, err)
	}
	if err := w.models.Jobs.Delete(ctx, ticker, job.PaymentID); err != nil {
		return fmt.Errorf("deleting delivered job %s/%s: %w", ticker, job.PaymentID, err)
	}
	log.Ctx(ctx).Infof("Cleaned up delivered job %s/%s", ticker, job.PaymentID)
	return nil
}

// failJob terminates a deposit whose retry window expired. The FAILED status
// keeps the last webhook error so operators can see why settlement never
// landed; the seen mark stops a later pass from re-crediting the hash.
func (w Worker) failJob(ctx context.Context, ticker string, job *data.Job, confirmed *wallet.DepositObservation, minConf int) error {
	reason := job.WebhookLastError
	if reason == "" {
		reason = "webhook retry window exceeded"
	}

	status := w.statusFor(data.FailedStatus, ticker, job, confirmed, minConf)
	status.WebhookError = reason
	if err := w.models.Statuses.Upsert(ctx, status); err != nil {
		return fmt.Errorf("writing FAILED status for %s/%s: %w", ticker, job.PaymentID, err)
	}
	if err := w.models.Seen.Mark(ctx, confirmed.Hash); err != nil {
		return fmt.Errorf("marking %s seen after terminal failure: %w", confirmed.Hash, err)
	}
	if err := w.models.Jobs.Delete(ctx, ticker, job.PaymentID); err != nil {
		return fmt.Errorf("deleting failed job %s/%s: %w", ticker, job.PaymentID, err)
	}
	if err := w.models.Ledger.RecordFailed(ctx, ticker, confirmed.Hash, job.PaymentID, reason); err != nil {
		log.Ctx(ctx).Warnf("Recording terminal failure in the ledger for %s/%s: %v", ticker, job.PaymentID, err)
	}

	log.Ctx(ctx).Warnf("Deposit %s/%s failed terminally after %d webhook attempts: %s", ticker, job.PaymentID, job.WebhookAttempts, reason)
	return nil
}

// completeJob finalizes a delivered deposit. The write order is binding:
// COMPLETED status, then the webhookSent latch, then the seen guard, then
// the job deletion. A crash between any two of them re-enters at the seen or
// webhookSent guard on the next pass without re-dispatching.
func (w Worker) completeJob(ctx context.Context, ticker string, job *data.Job, confirmed *wallet.DepositObservation, minConf int, payload webhook.Payload) error {
	status := w.statusFor(data.CompletedStatus, ticker, job, confirmed, minConf)
	status.PaidAmount = payload.PaidAmount
	status.PaidAmountAtomic = payload.PaidAmountAtomic
	status.EffectiveAmount = payload.EffectiveAmount
	status.EffectiveAmountAtomic = payload.EffectiveAmountAtomic
	status.FeeAtomic = payload.FeeAtomic

	if err := w.models.Statuses.Upsert(ctx, status); err != nil {
		return fmt.Errorf("writing COMPLETED status for %s/%s: %w", ticker, job.PaymentID, err)
	}
	if err := w.models.Jobs.MarkWebhookDelivered(ctx, ticker, job.PaymentID); err != nil {
		return fmt.Errorf("latching webhook delivery for %s/%s: %w", ticker, job.PaymentID, err)
	}
	if err := w.models.Seen.Mark(ctx, confirmed.Hash); err != nil {
		return fmt.Errorf("marking %s seen: %w", confirmed.Hash, err)
	}
	if err := w.models.Jobs.Delete(ctx, ticker, job.PaymentID); err != nil {
		return fmt.Errorf("deleting completed job %s/%s: %w", ticker, job.PaymentID, err)
	}
	if err := w.models.Ledger.RecordWebhookDelivered(ctx, ticker, confirmed.Hash, job.PaymentID); err != nil {
		log.Ctx(ctx).Warnf("Recording webhook delivery in the ledger for %s/%s: %v", ticker, job.PaymentID, err)
	}

	log.Ctx(ctx).Infof("Deposit %s/%s completed: %s %s at %d/%d confirmations", ticker, job.PaymentID, payload.PaidAmount, ticker, confirmed.Confirmations, minConf)
	return nil
}

// recordFailedDispatch persists the retry schedule after a failed webhook
// attempt. The delay is computed from the attempt count before this failure,
// so the first failure waits one base period.
func (w Worker) recordFailedDispatch(ctx context.Context, ticker string, job *data.Job, nowMs int64, result webhook.Result) error {
	delay := w.cfg.Backoff.Delay(job.WebhookAttempts)
	errText := dispatchErrorText(result)

	first := job.WebhookFirstAttemptAt
	if first == 0 {
		first = nowMs
	}
	failure := data.WebhookFailure{
		Attempts:       job.WebhookAttempts + 1,
		FirstAttemptAt: first,
		LastAttemptAt:  nowMs,
		NextAttemptAt:  nowMs + delay.Milliseconds(),
		LastError:      errText,
	}
	if err := w.models.Jobs.RecordWebhookFailure(ctx, ticker, job.PaymentID, failure); err != nil {
		return fmt.Errorf("recording webhook failure for %s/%s: %w", ticker, job.PaymentID, err)
	}
	job.WebhookAttempts = failure.Attempts
	job.WebhookFirstAttemptAt = failure.FirstAttemptAt
	job.WebhookLastAttemptAt = failure.LastAttemptAt
	job.WebhookNextAttemptAt = failure.NextAttemptAt
	job.WebhookLastError = failure.LastError

	log.Ctx(ctx).Warnf("Webhook attempt %d for %s/%s failed (%s), next attempt in %s", failure.Attempts, ticker, job.PaymentID, errText, delay)
	return nil
}

func (w Worker) monitorWebhookCounter(ctx context.Context, ticker, result string) {
	labels := monitor.WebhookDeliveryLabels{Ticker: ticker, Result: result}.ToMap()
	if err := w.monitorService.MonitorCounters(monitor.WebhookDeliveriesCounterTag, labels); err != nil {
		log.Ctx(ctx).Errorf("Error monitoring webhook counter: %v", err)
	}
}

func dispatchErrorText(result webhook.Result) string {
	if result.Err != nil {
		return result.Err.Error()
	}
	return fmt.Sprintf("webhook responded with status %d", result.StatusCode)
}
