package diagnostics

import (
	"fmt"
	"io"
	"strings"
)

const ruler = "=================================================="

func statusIcon(s Status) string {
	switch s {
	case StatusPass:
		return "✅"
	case StatusWarn:
		return "⚠️ "
	default:
		return "❌"
	}
}

func summaryLabel(r CheckResult, pass, fail string) string {
	if r.OK() {
		return "✅ " + pass
	}
	if r.Status == StatusWarn {
		return "⚠️  " + fail
	}
	return "❌ " + fail
}

// Render печатает результаты проверок и итог.
func Render(w io.Writer, report Report) {
	var sb strings.Builder

	sb.WriteString("🧪 Testing Assistant Setup\n")
	sb.WriteString(ruler + "\n")

	for _, r := range []CheckResult{report.Web, report.LLM, report.Observability} {
		sb.WriteString(fmt.Sprintf("%s %s\n", statusIcon(r.Status), r.Message))
		for _, d := range r.Details {
			sb.WriteString("   " + d + "\n")
		}
	}

	sb.WriteString("\n📊 Test Results Summary:\n")
	sb.WriteString(fmt.Sprintf("   Web Application: %s\n", summaryLabel(report.Web, "Running", "Not Running")))
	sb.WriteString(fmt.Sprintf("   Chat Completion API: %s\n", summaryLabel(report.LLM, "Working", "Not Working")))
	sb.WriteString(fmt.Sprintf("   Observability Config: %s\n", summaryLabel(report.Observability, "Configured", "Not Configured")))

	if report.Ready() {
		sb.WriteString("\n🎉 Assistant demo is ready!\n")
		if report.URL != "" {
			sb.WriteString(fmt.Sprintf("   Open %s in your browser\n", report.URL))
		}
		if report.Observability.OK() {
			sb.WriteString("   Check your observability dashboard for data\n")
		} else {
			sb.WriteString("   Add observability credentials for full visibility\n")
		}
	} else {
		sb.WriteString("\n💥 Setup incomplete - please check the issues above\n")
	}

	io.WriteString(w, sb.String())
}

// RenderConnectivity печатает результат CheckConnectivity.
func RenderConnectivity(w io.Writer, res *ConnectivityResult, err error) {
	var sb strings.Builder

	sb.WriteString("🧪 Testing assistant connectivity...\n")
	sb.WriteString(ruler + "\n")

	if err != nil {
		sb.WriteString(fmt.Sprintf("❌ Error: %v\n", err))
		sb.WriteString("\n💥 Connectivity test failed!\n")
		sb.WriteString("Please check your API keys and configuration.\n")
		io.WriteString(w, sb.String())
		return
	}

	sb.WriteString("✅ API call successful!\n")
	sb.WriteString(fmt.Sprintf("📝 Response: %s\n", res.Reply))
	sb.WriteString(fmt.Sprintf("💰 Tokens used: %d\n", res.TotalTokens))
	sb.WriteString("\n🎉 Connectivity test completed successfully!\n")
	sb.WriteString("Start a conversation with: assistant chat\n")

	io.WriteString(w, sb.String())
}
