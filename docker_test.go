package roomfinder_test

import (
	"os"
	"strings"
	"testing"
)

func readFile(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("%s should exist: %v", name, err)
	}
	return string(data)
}

func TestDockerfile(t *testing.T) {
	content := readFile(t, "Dockerfile")

	var stages []string
	for line := range strings.SplitSeq(content, "\n") {
		if trimmed := strings.TrimSpace(line); strings.HasPrefix(trimmed, "FROM ") {
			stages = append(stages, trimmed)
		}
	}
	if len(stages) < 2 || !strings.Contains(stages[0], "golang:") {
		t.Fatalf("expected a Go builder stage followed by a runtime stage, got %v", stages)
	}
	if final := stages[len(stages)-1]; !strings.Contains(final, "distroless") {
		t.Errorf("final stage should be distroless, got %s", final)
	}

	for _, want := range []string{
		"./cmd/roomfinder",
		"./cmd/roomctl",
		`ENTRYPOINT ["/usr/local/bin/roomfinder"]`,
		`"healthcheck"`,
		"nonroot",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("Dockerfile should contain %q", want)
		}
	}
}

func TestDockerCompose(t *testing.T) {
	content := readFile(t, "docker-compose.yml")
	services := strings.SplitN(content, "\nnetworks:", 2)[0]

	tests := []struct {
		service string
		want    []string
		reject  []string
	}{
		// 外部通信はメールWebhookと画像URLの疎通確認を行うapiだけに許す
		{service: "api", want: []string{"- egress", "- backend", "service_completed_successfully"}},
		{service: "worker", want: []string{`"worker"`, "- backend", "service_completed_successfully"}, reject: []string{"- egress"}},
		{service: "migrate", want: []string{`command: ["migrate", "up"]`, "service_healthy"}, reject: []string{"- egress"}},
		{service: "db", want: []string{"postgres:", "healthcheck:"}, reject: []string{"- egress"}},
	}

	for _, tt := range tests {
		t.Run(tt.service, func(t *testing.T) {
			block := sectionOf(services, "  "+tt.service+":")
			if block == "" {
				t.Fatalf("docker-compose.yml should define service %q", tt.service)
			}
			for _, want := range tt.want {
				if !strings.Contains(block, want) {
					t.Errorf("%s should contain %q", tt.service, want)
				}
			}
			for _, reject := range tt.reject {
				if strings.Contains(block, reject) {
					t.Errorf("%s should not contain %q", tt.service, reject)
				}
			}
		})
	}

	if !strings.Contains(content, "internal: true") {
		t.Error("backend network should be internal")
	}
}

// sectionOf はcompose定義からheaderで始まるサービスのブロックを切り出す。
func sectionOf(content, header string) string {
	i := strings.Index(content, header+"\n")
	if i < 0 {
		return ""
	}
	var b strings.Builder
	for line := range strings.SplitSeq(content[i+len(header)+1:], "\n") {
		if strings.HasPrefix(line, "  ") && !strings.HasPrefix(line, "    ") {
			break
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
