// Package notify delivers pipeline completion and failure notifications to
// the configured destination URLs (mailto:, slack:, telegram: or webhook).
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"time"

	log "github.com/go-pkgz/lgr"
	pkgz "github.com/go-pkgz/notify"
)

// Service sends a message to all destinations, nil-safe to skip wiring when
// notifications are not configured.
type Service struct {
	Destinations []string
	Timeout      time.Duration

	sendFn func(ctx context.Context, destination, text string) error // for testing
}

// New makes notification service for destinations, nil if none configured.
func New(destinations []string, timeout time.Duration) *Service {
	if len(destinations) == 0 {
		return nil
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Service{Destinations: destinations, Timeout: timeout}
}

// Send delivers the message to every destination, collects failures but tries
// them all.
func (s *Service) Send(ctx context.Context, subj, text string) error {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	body, err := MakeSummaryHTML(subj, text)
	if err != nil {
		return err
	}

	sendFn := s.sendFn
	if sendFn == nil {
		sendFn = pkgz.Send
	}

	failed := 0
	for _, dest := range s.Destinations {
		if err := sendFn(ctx, dest, body); err != nil {
			log.Printf("[WARN] can't send to %s: %v", dest, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d notifications failed", failed, len(s.Destinations))
	}
	log.Printf("[DEBUG] notification %q sent to %d destinations", subj, len(s.Destinations))
	return nil
}

// MakeSummaryHTML creates the html notification body.
func MakeSummaryHTML(subj, text string) (string, error) {
	tmpl := `<!DOCTYPE html>
<html>
	<head>
		<meta name="viewport" content="width=device-width" />
		<meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
		<style type="text/css">
			body {
				font-family: "Arial";
				font-size: 1.0em;
			}
			pre {
				padding: 0.6em;
				font-size: 0.8em;
				background-color: #EEEEEE;
				overflow-x: auto;
				white-space: pre-wrap;
				word-wrap: break-word;
			}
			.bold {
				color: #882828;
				font-weight: 900;
			}
		</style>
	</head>

	<body>
		<p>Dataquiz: <span class="bold">{{.Subject}}</span> on {{.Host}} at {{.TS.Format "2006-01-02T15:04:05Z07:00"}}</p>
		<pre>
{{.Text}}
		</pre>
	</body>
</html>
`

	data := struct {
		Subject string
		Text    string
		TS      time.Time
		Host    string
	}{
		Subject: subj,
		Text:    text,
		TS:      time.Now(),
		Host:    hostname(),
	}

	t, err := template.New("msg").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("can't parse message template: %w", err)
	}
	buf := bytes.Buffer{}
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to apply template: %w", err)
	}
	return buf.String(), nil
}

func hostname() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}
