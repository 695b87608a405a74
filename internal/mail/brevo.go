package mail

import (
	"context"
	"time"

	brevo "github.com/getbrevo/brevo-go/lib"

	"github.com/cyberbrosec/cyberbro-web/internal/xerrors"
)

// Brevo sends mail through the Brevo (ex Sendinblue) transactional API.
type Brevo struct {
	client *brevo.APIClient
}

// NewBrevo builds a Brevo mailer with the given API key.
func NewBrevo(apiKey string) *Brevo {
	cfg := brevo.NewConfiguration()
	cfg.AddDefaultHeader("api-key", apiKey)
	return &Brevo{client: brevo.NewAPIClient(cfg)}
}

func (b *Brevo) Send(ctx context.Context, msg Message) error {
	// bound the provider call so a hung API doesn't pin the request forever
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	_, resp, err := b.client.TransactionalEmailsApi.SendTransacEmail(ctx, toSendSmtpEmail(msg))
	if err != nil {
		return xerrors.Wrap(err, "brevo send")
	}
	if resp != nil && resp.StatusCode >= 300 {
		return xerrors.Newf("brevo send: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func toSendSmtpEmail(msg Message) brevo.SendSmtpEmail {
	body := brevo.SendSmtpEmail{
		Sender: &brevo.SendSmtpEmailSender{
			Name:  msg.FromName,
			Email: msg.FromEmail,
		},
		To: []brevo.SendSmtpEmailTo{
			{Email: msg.ToEmail},
		},
		Subject:     msg.Subject,
		HtmlContent: msg.HTMLBody,
		TextContent: msg.TextBody,
	}
	if msg.ReplyToEmail != "" {
		body.ReplyTo = &brevo.SendSmtpEmailReplyTo{
			Name:  msg.ReplyToName,
			Email: msg.ReplyToEmail,
		}
	}
	return body
}
