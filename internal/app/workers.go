package app

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/hashicorp/go-multierror"
	"github.com/nats-io/nats.go"
	"go.uber.org/fx"

	"github.com/Alijeyrad/medvault_backend/internal/events"
	"github.com/Alijeyrad/medvault_backend/internal/repo"
	"github.com/Alijeyrad/medvault_backend/pkg/constants"
	"github.com/Alijeyrad/medvault_backend/pkg/email"
	s3pkg "github.com/Alijeyrad/medvault_backend/pkg/s3"
	"github.com/Alijeyrad/medvault_backend/pkg/sms"
)

// WorkerModule registers all NATS event workers.
var WorkerModule = fx.Module("workers",
	fx.Provide(ProvideNotifier),
	fx.Provide(ProvideBlobReaper),
	fx.Invoke(RegisterWorkers),
)

type Mailer interface {
	Send(ctx context.Context, m email.Message) error
	Config() email.Config
}

type Texter interface {
	SendAccessNotice(ctx context.Context, phoneNumber, name, status string) error
}

type BlobDeleter interface {
	Delete(ctx context.Context, key string) error
}

type WorkerParams struct {
	fx.In

	Lc       fx.Lifecycle
	NC       *nats.Conn
	Notifier *Notifier
	Reaper   *BlobReaper
}

func RegisterWorkers(p WorkerParams) {
	var subs []*nats.Subscription
	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var err error
			subs, err = subscribeAll(p.NC, map[string]nats.MsgHandler{
				constants.SubjectAccessRequested + ".*": p.Notifier.handle,
				constants.SubjectAccessGranted + ".*":   p.Notifier.handle,
				constants.SubjectAccessDenied + ".*":    p.Notifier.handle,
				constants.SubjectAccessRevoked + ".*":   p.Notifier.handle,
				constants.SubjectRecordDeleted + ".*":   p.Reaper.handle,
			})
			if err != nil {
				return err
			}
			slog.Info("workers: started", "subscriptions", len(subs))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			// Drain handled by ProvideNatsClient
			return nil
		},
	})
}

func subscribeAll(nc *nats.Conn, handlers map[string]nats.MsgHandler) ([]*nats.Subscription, error) {
	subs := make([]*nats.Subscription, 0, len(handlers))
	for subject, h := range handlers {
		sub, err := nc.Subscribe(subject, h)
		if err != nil {
			for _, s := range subs {
				_ = s.Unsubscribe()
			}
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// ---------------------------------------------------------------------------
// access notifications
// ---------------------------------------------------------------------------

// Notifier tells the other party about an access request change: the patient
// on a new request, the doctor on grant, deny or revoke.
type Notifier struct {
	repos  repo.Manager
	db     repo.DBTX
	mail   Mailer
	text   Texter
	logger *slog.Logger
}

func NewNotifier(db repo.DBTX, repos repo.Manager, mail Mailer, text Texter, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{repos: repos, db: db, mail: mail, text: text, logger: logger}
}

func ProvideNotifier(db *sql.DB, repos repo.Manager, mail *email.Client, text *sms.Client) *Notifier {
	return NewNotifier(db, repos, mail, text, slog.Default().With("worker", "notifier"))
}

func (n *Notifier) handle(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := n.Notify(ctx, msg.Subject); err != nil {
		n.logger.Warn("notification failed", "subject", msg.Subject, "err", err)
	}
}

// accessStatus returns the event name of "medvault.access.<status>.<id>".
func accessStatus(subject string) string {
	rest := strings.TrimPrefix(subject, "medvault.access.")
	if i := strings.IndexByte(rest, '.'); i > 0 {
		return rest[:i]
	}
	return ""
}

// Notify sends the email and SMS for one access event. Both channels are
// attempted; their errors are combined.
func (n *Notifier) Notify(ctx context.Context, subject string) error {
	id, err := events.ParseSubject(subject)
	if err != nil {
		return err
	}
	status := accessStatus(subject)

	ar, err := n.repos.AccessRequests(n.db).Get(ctx, id)
	if err != nil {
		return err
	}

	recipientID, otherName := ar.DoctorID, ar.PatientName
	if status == "requested" {
		recipientID, otherName = ar.PatientID, ar.DoctorName
	}
	recipient, err := n.repos.Users(n.db).Get(ctx, recipientID)
	if err != nil {
		return err
	}

	data := email.AccessEmailData{
		RecipientName:  recipient.FullName,
		RecipientEmail: recipient.Email,
		DoctorName:     ar.DoctorName,
		PatientName:    ar.PatientName,
		Status:         status,
	}
	if ar.DoctorSpecialty != nil {
		data.DoctorSpecialty = *ar.DoctorSpecialty
	}

	var result *multierror.Error

	if n.mail != nil {
		cfg := n.mail.Config()
		data.AppName, data.BaseURL = cfg.AppName, cfg.BaseURL

		m := email.BuildAccessResolvedEmail(data)
		if status == "requested" {
			m = email.BuildAccessRequestedEmail(data)
		}
		if err := n.mail.Send(ctx, m); err != nil && !errors.Is(err, email.ErrDisabled) {
			result = multierror.Append(result, err)
		}
	}

	if n.text != nil && recipient.Phone != nil {
		if err := n.text.SendAccessNotice(ctx, *recipient.Phone, otherName, status); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

// ---------------------------------------------------------------------------
// blob reaper
// ---------------------------------------------------------------------------

// BlobReaper deletes the ciphertext of a deleted record. The event payload is
// the object key.
type BlobReaper struct {
	blobs   BlobDeleter
	retries uint64
	logger  *slog.Logger
}

func NewBlobReaper(blobs BlobDeleter, retries uint64, logger *slog.Logger) *BlobReaper {
	if logger == nil {
		logger = slog.Default()
	}
	return &BlobReaper{blobs: blobs, retries: retries, logger: logger}
}

func ProvideBlobReaper(blobs *s3pkg.Client) *BlobReaper {
	return NewBlobReaper(blobs, 5, slog.Default().With("worker", "blob_reaper"))
}

func (r *BlobReaper) handle(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := r.Reap(ctx, string(msg.Data)); err != nil {
		r.logger.Error("blob delete failed", "subject", msg.Subject, "file_key", string(msg.Data), "err", err)
	}
}

func (r *BlobReaper) Reap(ctx context.Context, fileKey string) error {
	fileKey = strings.TrimSpace(fileKey)
	if !strings.HasPrefix(fileKey, "records/") {
		return errors.New("refusing to delete object outside records/")
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second

	op := func() error {
		return r.blobs.Delete(ctx, fileKey)
	}
	err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(b, r.retries), ctx),
		func(err error, d time.Duration) {
			r.logger.Warn("blob delete failed, retrying", "file_key", fileKey, "in", d, "err", err)
		})
	if err != nil {
		return err
	}
	r.logger.Info("blob deleted", "file_key", fileKey)
	return nil
}
