// Package dispatch submits reviewed applications through the best
// available channel. It is the single place where anything leaves the
// system, which is also where the test-mode guarantee is enforced.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"

	"jobmate/campaign-service/internal/actionlog"
	"jobmate/campaign-service/internal/application"
	"jobmate/campaign-service/internal/model"
)

// ErrTestModePolicy is returned when a transport is about to transmit
// on behalf of a test-mode application. It indicates a dispatcher bug,
// not a user error, and always fails the dispatch.
var ErrTestModePolicy = errors.New("transport invoked for a test-mode application")

// APISubmitter submits directly through a job board's application API.
type APISubmitter interface {
	// CanSubmit reports whether the source accepts API submissions.
	CanSubmit(sourceID string) bool
	Submit(ctx context.Context, ca *application.ClaimedApplication, artifacts map[string]string) error
}

// FormAutomator fills and submits the posting's web application form.
type FormAutomator interface {
	Enabled() bool
	Submit(ctx context.Context, ca *application.ClaimedApplication, artifacts map[string]string) error
}

// EmailSender delivers an application email. Implementations must
// refuse test-mode applications with ErrTestModePolicy.
type EmailSender interface {
	Send(ctx context.Context, ca *application.ClaimedApplication, msg EmailMessage) error
}

// EmailRecorder persists the email audit trail. Dry runs are recorded
// through it too.
type EmailRecorder interface {
	RecordDryRun(ctx context.Context, applicationID, recipient, subject string) error
}

// ArtifactProvider resolves the latest rendered document per type.
type ArtifactProvider interface {
	LatestArtifacts(ctx context.Context, applicationID string) (map[string]string, error)
}

// AppLifecycle is the slice of the application service the dispatcher
// drives.
type AppLifecycle interface {
	SetMethod(ctx context.Context, appID, method string) error
	FinishDispatch(ctx context.Context, appID string, ok bool) (*model.Application, error)
	HandBackAssisted(ctx context.Context, appID string) (*model.Application, error)
}

// Dispatcher submits one claimed application per Process call.
// api and forms may be nil when the deployment carries no such
// integration; email is required.
type Dispatcher struct {
	apps      AppLifecycle
	artifacts ArtifactProvider
	api       APISubmitter
	forms     FormAutomator
	email     EmailSender
	records   EmailRecorder
	alog      actionlog.Logger
}

func NewDispatcher(apps AppLifecycle, artifacts ArtifactProvider, api APISubmitter,
	forms FormAutomator, email EmailSender, records EmailRecorder, alog actionlog.Logger) *Dispatcher {
	return &Dispatcher{
		apps: apps, artifacts: artifacts,
		api: api, forms: forms, email: email, records: records,
		alog: alog,
	}
}

// Process dispatches a claimed (SUBMITTING) application. Method
// selection runs in fixed priority order: API submission, form
// automation, email, assisted. ASSISTED hands the application back to
// the user instead of submitting.
func (d *Dispatcher) Process(ctx context.Context, ca *application.ClaimedApplication) error {
	app, offer := ca.App, ca.Offer

	// An application that already went through the dispatcher and was
	// handed back as ASSISTED is waiting on the user: release the claim
	// without re-selecting a method or re-logging the hand-back.
	if app.Method != nil && *app.Method == application.MethodAssisted {
		_, err := d.apps.HandBackAssisted(ctx, app.ID)
		return err
	}

	method := d.selectMethod(ca)
	if err := d.apps.SetMethod(ctx, app.ID, method); err != nil {
		return d.fail(ctx, ca, method, fmt.Errorf("set method: %w", err))
	}
	log.Printf("[dispatch] Application %s (%s at %s): method %s, testMode=%t",
		app.ID, offer.Title, offer.Company, method, app.TestMode)

	if method == application.MethodAssisted {
		if _, err := d.apps.HandBackAssisted(ctx, app.ID); err != nil {
			return err
		}
		d.log(ctx, ca, method, actionlog.StatusPending, map[string]any{"reason": "manual submission required"})
		return nil
	}

	artifacts, err := d.artifacts.LatestArtifacts(ctx, app.ID)
	if err != nil {
		return d.fail(ctx, ca, method, err)
	}

	if app.TestMode {
		// Everything ran except the transmission itself. Record the
		// would-be artifact and complete the dispatch as a dry run.
		if method == application.MethodEmail {
			recipient, _ := contactEmail(offer.Description)
			if err := d.records.RecordDryRun(ctx, app.ID, recipient, emailSubject(ca)); err != nil {
				return d.fail(ctx, ca, method, err)
			}
		}
		if _, err := d.apps.FinishDispatch(ctx, app.ID, true); err != nil {
			return err
		}
		d.log(ctx, ca, method, actionlog.StatusSuccess, map[string]any{"dryRun": true})
		return nil
	}

	if err := d.transmit(ctx, ca, method, artifacts); err != nil {
		return d.fail(ctx, ca, method, err)
	}

	if _, err := d.apps.FinishDispatch(ctx, app.ID, true); err != nil {
		return err
	}
	d.log(ctx, ca, method, actionlog.StatusSuccess, nil)
	return nil
}

func (d *Dispatcher) selectMethod(ca *application.ClaimedApplication) string {
	if d.api != nil && d.api.CanSubmit(ca.Offer.SourceID) {
		return application.MethodAutoAPI
	}
	if d.forms != nil && d.forms.Enabled() && ca.Offer.SourceURL != "" {
		return application.MethodAutoForm
	}
	if _, ok := contactEmail(ca.Offer.Description); ok {
		return application.MethodEmail
	}
	return application.MethodAssisted
}

// transmit performs the live submission. The test-mode check here is
// the final choke point: Process never reaches transmit for a test-mode
// application, and if it ever did the dispatch fails loudly rather than
// contacting an employer.
func (d *Dispatcher) transmit(ctx context.Context, ca *application.ClaimedApplication, method string, artifacts map[string]string) error {
	if ca.App.TestMode {
		return ErrTestModePolicy
	}

	switch method {
	case application.MethodAutoAPI:
		return d.api.Submit(ctx, ca, artifacts)
	case application.MethodAutoForm:
		return d.forms.Submit(ctx, ca, artifacts)
	case application.MethodEmail:
		recipient, _ := contactEmail(ca.Offer.Description)
		return d.email.Send(ctx, ca, EmailMessage{
			Recipient: recipient,
			Subject:   emailSubject(ca),
			Body:      emailBody(ca, artifacts),
		})
	default:
		return fmt.Errorf("no transport for method %s", method)
	}
}

func (d *Dispatcher) fail(ctx context.Context, ca *application.ClaimedApplication, method string, cause error) error {
	log.Printf("[dispatch] ERROR: application %s via %s: %v", ca.App.ID, method, cause)
	if _, err := d.apps.FinishDispatch(ctx, ca.App.ID, false); err != nil {
		return errors.Join(cause, err)
	}
	d.log(ctx, ca, method, actionlog.StatusFailure, map[string]any{"error": cause.Error()})
	return cause
}

func (d *Dispatcher) log(ctx context.Context, ca *application.ClaimedApplication, method, status string, detail map[string]any) {
	if detail == nil {
		detail = map[string]any{}
	}
	detail["method"] = method
	d.alog.Append(ctx, actionlog.Entry{
		EntityType: "application", EntityID: ca.App.ID,
		Action: "application.dispatch", Status: status,
		TestMode: ca.App.TestMode,
		Detail:   detail,
	})
}

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// contactEmail extracts an application contact address from the
// posting text, if one is present.
func contactEmail(description string) (string, bool) {
	m := emailPattern.FindString(description)
	return m, m != ""
}

func emailSubject(ca *application.ClaimedApplication) string {
	return fmt.Sprintf("Application: %s at %s", ca.Offer.Title, ca.Offer.Company)
}

func emailBody(ca *application.ClaimedApplication, artifacts map[string]string) string {
	body := fmt.Sprintf("Please find my application for the %s position at %s.\n\n",
		ca.Offer.Title, ca.Offer.Company)
	if ref, ok := artifacts["CV"]; ok {
		body += "CV: " + ref + "\n"
	}
	if ref, ok := artifacts["COVER_LETTER"]; ok {
		body += "Cover letter: " + ref + "\n"
	}
	return body
}
