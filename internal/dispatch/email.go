package dispatch

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wneessen/go-mail"

	"jobmate/campaign-service/internal/application"
)

// EmailMessage is one outbound application email.
type EmailMessage struct {
	Recipient string
	Subject   string
	Body      string
}

// SMTPMailer sends application emails over SMTP and records every
// attempt in email_records.
type SMTPMailer struct {
	pool     *pgxpool.Pool
	host     string
	port     int
	from     string
	username string
	password string
}

func NewSMTPMailer(pool *pgxpool.Pool, host string, port int, from, username, password string) *SMTPMailer {
	return &SMTPMailer{pool: pool, host: host, port: port, from: from, username: username, password: password}
}

// Send delivers msg for a live application. The test-mode refusal here
// backs the dispatcher's own check: transmission for a test-mode
// application must be impossible no matter who calls.
func (m *SMTPMailer) Send(ctx context.Context, ca *application.ClaimedApplication, msg EmailMessage) error {
	if ca.App.TestMode {
		return ErrTestModePolicy
	}
	if msg.Recipient == "" {
		return fmt.Errorf("no recipient address")
	}

	recordID, err := m.insertRecord(ctx, ca.App.ID, msg.Recipient, msg.Subject, "QUEUED", false)
	if err != nil {
		return err
	}

	outMsg, err := m.buildMessage(msg)
	if err != nil {
		m.setStatus(ctx, recordID, "FAILED", err.Error())
		return fmt.Errorf("build email: %w", err)
	}

	client, err := mail.NewClient(m.host,
		mail.WithPort(m.port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.username),
		mail.WithPassword(m.password),
	)
	if err != nil {
		m.setStatus(ctx, recordID, "FAILED", err.Error())
		return fmt.Errorf("smtp client: %w", err)
	}

	m.setStatus(ctx, recordID, "SENDING", "")
	if err := client.DialAndSendWithContext(ctx, outMsg); err != nil {
		m.setStatus(ctx, recordID, "FAILED", err.Error())
		return fmt.Errorf("send email: %w", err)
	}

	m.setStatus(ctx, recordID, "SENT", "")
	log.Printf("[dispatch] Application %s: email sent to %s", ca.App.ID, msg.Recipient)
	return nil
}

// RecordDryRun stores the email that would have been sent for a
// test-mode application, marked dry_run so auditors can tell it apart.
func (m *SMTPMailer) RecordDryRun(ctx context.Context, applicationID, recipient, subject string) error {
	_, err := m.insertRecord(ctx, applicationID, recipient, subject, "SENT", true)
	return err
}

func (m *SMTPMailer) buildMessage(msg EmailMessage) (*mail.Msg, error) {
	mm := mail.NewMsg()
	if err := mm.From(m.from); err != nil {
		return nil, err
	}
	if err := mm.To(msg.Recipient); err != nil {
		return nil, err
	}
	mm.Subject(msg.Subject)
	mm.SetBodyString(mail.TypeTextPlain, msg.Body)
	return mm, nil
}

func (m *SMTPMailer) insertRecord(ctx context.Context, applicationID, recipient, subject, status string, dryRun bool) (string, error) {
	var id string
	err := m.pool.QueryRow(ctx,
		`INSERT INTO email_records (application_id, recipient, subject, status, dry_run)
		 VALUES ($1, $2, $3, $4::email_status, $5)
		 RETURNING id`,
		applicationID, recipient, subject, status, dryRun,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert email record: %w", err)
	}
	return id, nil
}

func (m *SMTPMailer) setStatus(ctx context.Context, recordID, status, errMsg string) {
	var errVal *string
	if errMsg != "" {
		errVal = &errMsg
	}
	_, err := m.pool.Exec(ctx,
		`UPDATE email_records SET status = $1::email_status, error = $2 WHERE id = $3`,
		status, errVal, recordID,
	)
	if err != nil {
		log.Printf("[dispatch] WARN: email record %s status update failed: %v", recordID, err)
	}
}
