package email

import (
	"fmt"
	"html"
	"strings"
)

// AccessEmailData is what the access notification templates need.
type AccessEmailData struct {
	RecipientName   string
	RecipientEmail  string
	DoctorName      string
	DoctorSpecialty string
	PatientName     string
	// Status is one of requested, granted, denied, revoked.
	Status  string
	AppName string
	BaseURL string
}

func (d AccessEmailData) appName() string {
	if d.AppName == "" {
		return "MedVault"
	}
	return d.AppName
}

func (d AccessEmailData) recipient() string {
	if d.RecipientName == "" {
		return "there"
	}
	return d.RecipientName
}

func (d AccessEmailData) doctor() string {
	if d.DoctorSpecialty == "" {
		return d.DoctorName
	}
	return fmt.Sprintf("%s (%s)", d.DoctorName, d.DoctorSpecialty)
}

// BuildAccessRequestedEmail tells a patient a doctor asked for their records.
func BuildAccessRequestedEmail(data AccessEmailData) Message {
	appName := data.appName()
	link := strings.TrimRight(data.BaseURL, "/") + "/access-requests"

	subject := fmt.Sprintf("%s requested access to your records", data.DoctorName)

	textBody := fmt.Sprintf(`Hi %s,

%s has asked to view your medical records on %s.

Nothing is shared until you approve. Review the request here:
%s

If you do not know this doctor, deny the request.

The %s Team`,
		data.recipient(), data.doctor(), appName, link, appName)

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2 style="color: #0f766e;">Hi %s,</h2>
    <p><strong>%s</strong> has asked to view your medical records on %s.</p>
    <p>Nothing is shared until you approve.</p>
    <p style="text-align: center; margin: 30px 0;">
        <a href="%s" style="background-color: #0f766e; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block;">Review Request</a>
    </p>
    <p style="color: #6b7280; font-size: 14px;">If you do not know this doctor, deny the request.</p>
    <p style="color: #6b7280; font-size: 14px; margin-top: 30px;">The %s Team</p>
</body>
</html>`,
		html.EscapeString(data.recipient()), html.EscapeString(data.doctor()), appName, link, appName)

	return Message{
		To:       []string{data.RecipientEmail},
		Subject:  subject,
		TextBody: textBody,
		HTMLBody: htmlBody,
	}
}

// BuildAccessResolvedEmail tells a doctor the patient granted, denied or
// revoked their access.
func BuildAccessResolvedEmail(data AccessEmailData) Message {
	appName := data.appName()

	var subject, line string
	switch data.Status {
	case "granted":
		subject = fmt.Sprintf("%s granted you access", data.PatientName)
		line = "granted your request. Their records are now available to you."
	case "revoked":
		subject = fmt.Sprintf("%s revoked your access", data.PatientName)
		line = "revoked your access. You can no longer fetch keys for their records."
	default:
		subject = fmt.Sprintf("%s declined your request", data.PatientName)
		line = "declined your access request."
	}

	textBody := fmt.Sprintf(`Hi %s,

%s %s

The %s Team`,
		data.recipient(), data.PatientName, line, appName)

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2 style="color: #0f766e;">Hi %s,</h2>
    <p><strong>%s</strong> %s</p>
    <p style="color: #6b7280; font-size: 14px; margin-top: 30px;">The %s Team</p>
</body>
</html>`,
		html.EscapeString(data.recipient()), html.EscapeString(data.PatientName), line, appName)

	return Message{
		To:       []string{data.RecipientEmail},
		Subject:  subject,
		TextBody: textBody,
		HTMLBody: htmlBody,
	}
}
