package mail

import "testing"

func TestToSendSmtpEmail(t *testing.T) {
	msg := Message{
		FromName:     "CyberBro Security Contact Form",
		FromEmail:    "noreply@cyberbrosecurity.work",
		ToEmail:      "team@cyberbrosecurity.work",
		ReplyToName:  "Jordan Blake",
		ReplyToEmail: "jordan@example.org",
		Subject:      "Contact form: Jordan Blake",
		HTMLBody:     "<p>hi</p>",
		TextBody:     "hi",
	}

	body := toSendSmtpEmail(msg)

	if body.Sender == nil || body.Sender.Email != msg.FromEmail || body.Sender.Name != msg.FromName {
		t.Fatalf("sender = %+v", body.Sender)
	}
	if len(body.To) != 1 || body.To[0].Email != msg.ToEmail {
		t.Fatalf("to = %+v", body.To)
	}
	if body.ReplyTo == nil || body.ReplyTo.Email != msg.ReplyToEmail || body.ReplyTo.Name != msg.ReplyToName {
		t.Fatalf("replyTo = %+v", body.ReplyTo)
	}
	if body.Subject != msg.Subject {
		t.Fatalf("subject = %q", body.Subject)
	}
	if body.HtmlContent != msg.HTMLBody || body.TextContent != msg.TextBody {
		t.Fatalf("content = %q / %q", body.HtmlContent, body.TextContent)
	}
}

func TestToSendSmtpEmail_NoReplyTo(t *testing.T) {
	body := toSendSmtpEmail(Message{
		FromEmail: "noreply@cyberbrosecurity.work",
		ToEmail:   "team@cyberbrosecurity.work",
	})
	if body.ReplyTo != nil {
		t.Fatalf("replyTo = %+v, want nil when submitter email absent", body.ReplyTo)
	}
}
