package notify

import (
	"bytes"
	"text/template"
	"time"
)

const OTPSubject = "Your OTP for Account Verification"

var otpEmailTemplate = template.Must(template.New("otp_email").Parse(`
Your One-Time Password (OTP) is:

{{.Code}}

This OTP is valid for {{.Minutes}} minutes.
{{- if .Link}}

Or verify directly using this link:

{{.Link}}
{{- end}}
Do not share this with anyone.
`))

var otpSMSTemplate = template.Must(template.New("otp_sms").Parse(
	`Your verification code is {{.Code}}. It expires in {{.Minutes}} minutes. Do not share it.`))

// OTPContent is the data rendered into a code message.
type OTPContent struct {
	Code string
	TTL  time.Duration
	Link string
}

// OTPMessage renders the code notification for the given channel.
func OTPMessage(channel Channel, to string, content OTPContent) (Message, error) {
	minutes := int(content.TTL / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	data := struct {
		Code    string
		Minutes int
		Link    string
	}{content.Code, minutes, content.Link}

	tmpl := otpEmailTemplate
	subject := OTPSubject
	if channel == ChannelSMS {
		tmpl = otpSMSTemplate
		subject = ""
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return Message{}, err
	}
	return Message{
		Channel: channel,
		To:      to,
		Subject: subject,
		Body:    buf.String(),
	}, nil
}
