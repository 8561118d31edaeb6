package monitor

import (
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// AlertConfig holds the SMTP settings for non-compliance alerts.
type AlertConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// sendMail is swapped out in tests.
var sendMail = smtp.SendMail

// SendAlert mails a summary of fresh non-compliance, optionally attaching
// the report snapshot.
func SendAlert(cfg AlertConfig, dataset string, fresh map[string][]string, attachment string) error {
	if len(fresh) == 0 {
		return nil
	}
	if cfg.Host == "" || cfg.From == "" || len(cfg.To) == 0 {
		return fmt.Errorf("alert config is missing host, sender or recipients")
	}

	msg, err := buildAlertMessage(cfg, dataset, fresh, attachment)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	if err := sendMail(addr, auth, cfg.From, cfg.To, msg); err != nil {
		return fmt.Errorf("sending alert: %w", err)
	}
	return nil
}

func buildAlertMessage(cfg AlertConfig, dataset string, fresh map[string][]string, attachment string) ([]byte, error) {
	var body strings.Builder
	fmt.Fprintf(&body, "New protocol deviations in dataset %s:\r\n\r\n", dataset)
	seqIDs := make([]string, 0, len(fresh))
	for id := range fresh {
		seqIDs = append(seqIDs, id)
	}
	sort.Strings(seqIDs)
	for _, id := range seqIDs {
		fmt.Fprintf(&body, "  %s: %s\r\n", id, strings.Join(fresh[id], ", "))
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(cfg.To, ", "))
	fmt.Fprintf(&msg, "Subject: [mrqc] non-compliance in %s\r\n", dataset)
	fmt.Fprintf(&msg, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")

	if attachment == "" {
		msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		msg.WriteString(body.String())
		return []byte(msg.String()), nil
	}

	data, err := os.ReadFile(attachment)
	if err != nil {
		return nil, fmt.Errorf("reading attachment: %w", err)
	}

	var buf strings.Builder
	w := multipart.NewWriter(&buf)
	fmt.Fprintf(&msg, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", w.Boundary())

	text, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=utf-8"},
	})
	if err != nil {
		return nil, fmt.Errorf("building alert body: %w", err)
	}
	if _, err := text.Write([]byte(body.String())); err != nil {
		return nil, fmt.Errorf("building alert body: %w", err)
	}

	part, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"application/octet-stream"},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition": {fmt.Sprintf("attachment; filename=%q",
			filepath.Base(attachment))},
	})
	if err != nil {
		return nil, fmt.Errorf("building alert attachment: %w", err)
	}
	enc := base64.NewEncoder(base64.StdEncoding, part)
	if _, err := enc.Write(data); err != nil {
		return nil, fmt.Errorf("building alert attachment: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("building alert attachment: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("building alert message: %w", err)
	}

	msg.WriteString(buf.String())
	return []byte(msg.String()), nil
}
