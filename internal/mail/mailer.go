// Egen Lista | 2026
// mailer.go

package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/resend/resend-go/v2"

	"github.com/egenlista/api/internal/config"
)

// Mailer sends the transactional mails. Callers treat dispatch as
// best-effort: a failed send is logged, never propagated into the
// request outcome.
type Mailer interface {
	SendAccountVerification(ctx context.Context, to, token string) error
	SendPasswordReset(ctx context.Context, to, token string) error
	SendContactVerification(ctx context.Context, to, token string) error
}

type mailer struct {
	client  *resend.Client
	from    string
	baseURL string
}

func New(cfg config.MailConfig, baseURL string) Mailer {
	return &mailer{
		client:  resend.NewClient(cfg.APIKey),
		from:    fmt.Sprintf("%s <%s>", cfg.FromName, cfg.From),
		baseURL: baseURL,
	}
}

func (m *mailer) SendAccountVerification(
	ctx context.Context,
	to, token string,
) error {
	link := m.link("/verifiera-konto", token)

	return m.send(ctx, to,
		"Bekräfta din e-postadress",
		fmt.Sprintf(verifyAccountHTML, link, link),
	)
}

func (m *mailer) SendPasswordReset(
	ctx context.Context,
	to, token string,
) error {
	link := m.link("/aterstall-losenord", token)

	return m.send(ctx, to,
		"Återställ ditt lösenord",
		fmt.Sprintf(resetPasswordHTML, link, link),
	)
}

func (m *mailer) SendContactVerification(
	ctx context.Context,
	to, token string,
) error {
	link := m.link("/bekrafta-kontakt", token)

	return m.send(ctx, to,
		"Bekräfta din registrering",
		fmt.Sprintf(verifyContactHTML, link, link),
	)
}

func (m *mailer) link(path, token string) string {
	return fmt.Sprintf(
		"%s%s?token=%s",
		m.baseURL,
		path,
		url.QueryEscape(token),
	)
}

func (m *mailer) send(ctx context.Context, to, subject, html string) error {
	_, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	})
	if err != nil {
		return fmt.Errorf("send email %q: %w", subject, err)
	}

	return nil
}

// LogOnError is the shared swallow-and-log helper for callers that
// must not fail the request on dispatch errors.
func LogOnError(err error, flow, recipient string) {
	if err != nil {
		slog.Error("email dispatch failed",
			"flow", flow,
			"recipient", recipient,
			"error", err,
		)
	}
}

const verifyAccountHTML = `<p>Hej!</p>
<p>Tack för att du skapade ett konto på Egen Lista. Klicka på länken nedan för att bekräfta din e-postadress. Länken är giltig i 24 timmar.</p>
<p><a href="%s">Bekräfta e-postadress</a></p>
<p>Om länken inte fungerar, kopiera denna adress till din webbläsare:<br>%s</p>
<p>Om du inte skapade kontot kan du bortse från detta mejl.</p>`

const resetPasswordHTML = `<p>Hej!</p>
<p>Vi har tagit emot en begäran om att återställa lösenordet för ditt konto. Klicka på länken nedan för att välja ett nytt lösenord. Länken är giltig i 1 timme.</p>
<p><a href="%s">Återställ lösenord</a></p>
<p>Om länken inte fungerar, kopiera denna adress till din webbläsare:<br>%s</p>
<p>Om du inte begärde en återställning kan du bortse från detta mejl.</p>`

const verifyContactHTML = `<p>Hej!</p>
<p>Du har registrerat dig via ett anmälningsformulär. Klicka på länken nedan för att bekräfta din e-postadress. Länken är giltig i 24 timmar.</p>
<p><a href="%s">Bekräfta e-postadress</a></p>
<p>Om länken inte fungerar, kopiera denna adress till din webbläsare:<br>%s</p>`
