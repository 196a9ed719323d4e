package alerts

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/liamashdown/tokengate/internal/metrics"
	"github.com/liamashdown/tokengate/internal/storage"
)

const sendTimeout = 10 * time.Second

// Store is the audit-log side of alert recording.
type Store interface {
	InsertAlert(ctx context.Context, alert *storage.AlertRecord) (int64, error)
}

// Recorder writes every alert to the audit log and hands it to a Sender in
// the background. Delivery failures are logged and never reach the caller.
type Recorder struct {
	store       Store
	sender      Sender
	log         *logrus.Logger
	environment string
	now         func() time.Time

	wg sync.WaitGroup
}

// NewRecorder creates a recorder. sender may be nil to record without
// notifying.
func NewRecorder(store Store, sender Sender, log *logrus.Logger, environment string) *Recorder {
	return &Recorder{
		store:       store,
		sender:      sender,
		log:         log,
		environment: environment,
		now:         time.Now,
	}
}

// Record appends an AlertRecord and schedules delivery. It returns the
// record id, or 0 when the audit write failed.
func (r *Recorder) Record(ctx context.Context, alertType Type, address, message string) int64 {
	now := r.now()
	rec := &storage.AlertRecord{
		AlertType: string(alertType),
		Message:   message,
		Address:   address,
		CreatedTS: now.Unix(),
	}

	id, err := r.store.InsertAlert(ctx, rec)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"alert_type": alertType,
			"address":    address,
			"error":      err,
		}).Error("Failed to record alert")
	}

	if r.sender == nil {
		return id
	}

	payload := &AlertPayload{
		ID:           id,
		Type:         alertType,
		Severity:     alertType.Severity(),
		Address:      address,
		AddressShort: ShortAddress(address),
		Message:      message,
		Timestamp:    now,
		Environment:  r.environment,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
		defer cancel()

		err := r.sender.Send(sendCtx, payload)
		metrics.RecordAlert(string(alertType), err)
		if err != nil {
			r.log.WithFields(logrus.Fields{
				"alert_type": alertType,
				"address":    address,
				"error":      err,
			}).Warn("Alert delivery failed")
		}
	}()
	return id
}

// Flush waits for in-flight deliveries.
func (r *Recorder) Flush() {
	r.wg.Wait()
}
