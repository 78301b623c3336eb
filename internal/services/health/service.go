package health

import (
	"context"
	"database/sql"
	"time"

	"mailmerge-backend/internal/mailer"
	"mailmerge-backend/internal/shared/storage/db"
)

const dbPingTimeout = 2 * time.Second

// MailStatus reports the mail transport's last readiness check.
type MailStatus interface {
	Status() mailer.Status
}

// Report is the health payload.
type Report struct {
	OK   bool          `json:"ok"`
	Mail mailer.Status `json:"mail"`
	// DB is "ok", "error" or "memory" when no database is configured.
	DB string `json:"db"`
}

// Service encapsulates health-related checks.
type Service struct {
	Mail MailStatus
	DB   *sql.DB
}

// NewService constructs a new health service.
func NewService(mail MailStatus, sqlDB *sql.DB) *Service {
	return &Service{Mail: mail, DB: sqlDB}
}

// Status reports process liveness plus mail and database readiness. The
// process is OK as long as it serves requests; an unready transport only
// makes deliveries fail.
func (s *Service) Status(ctx context.Context) Report {
	report := Report{OK: true, DB: "memory"}
	if s.Mail != nil {
		report.Mail = s.Mail.Status()
	}
	if s.DB != nil {
		report.DB = "ok"
		if err := db.Ping(ctx, s.DB, dbPingTimeout); err != nil {
			report.DB = "error"
		}
	}
	return report
}
