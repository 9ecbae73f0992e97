package pdf

import (
	"github.com/a3tai/qbank-extractor/internal/descriptions"
	"github.com/a3tai/qbank-extractor/internal/ocr"
	"github.com/a3tai/qbank-extractor/internal/profile"
)

var toolUsage = map[string]string{
	"qbank_detect_anchors":   "qbank_detect_anchors(path, profile?)",
	"qbank_parse_answer_key": "qbank_parse_answer_key(path, profile?, companion_path?)",
	"qbank_classify_answer":  "qbank_classify_answer(token)",
	"qbank_validate_pdf":     "qbank_validate_pdf(path)",
	"qbank_run_manifest":     "qbank_run_manifest(manifest?)",
	"qbank_server_info":      "qbank_server_info()",
}

// ServerInfo describes the server, its profiles and its tools.
func (s *Service) ServerInfo(serverName, version, defaultProfile string) *ServerInfoResult {
	names := descriptions.GetAllToolNames()
	tools := make([]ToolInfo, 0, len(names))
	for _, name := range names {
		tools = append(tools, ToolInfo{
			Name:        name,
			Description: firstLine(descriptions.GetToolDescription(name)),
			Usage:       toolUsage[name],
		})
	}
	return &ServerInfoResult{
		ServerName:      serverName,
		Version:         version,
		BaseDirectory:   s.BaseDirectory(),
		DefaultProfile:  defaultProfile,
		Profiles:        profile.Names(),
		AvailableTools:  tools,
		SupportedFormat: "PDF",
		OCRAvailable:    ocr.Enabled,
	}
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
