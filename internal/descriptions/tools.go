package descriptions

import "sort"

// Tool descriptions with practical examples and use cases

const (
	DetectAnchorsDescription = `Find the question-number anchors of a question-paper PDF and split them into the question and solution sections.

**When to use:** Checking how a book will be cut before running a batch, or tuning a source profile.

**Examples:**
• Preview a chapter: "Detect anchors in books/physics_ch3.pdf with the disha profile"
• Debug a missing question: "Why is question 17 absent in mains/2023.pdf?" (compare candidates and rejections)

**Common workflows:**
1. Profile tuning: qbank_detect_anchors → adjust profile_overrides → detect again
2. Batch preparation: qbank_validate_pdf → qbank_detect_anchors → qbank_run_manifest

**Best practices:** The split_reason field shows whether solutions were found by heading ("header"), by a numbering reset ("reset") or not at all ("none").`

	ParseAnswerKeyDescription = `Read the answer key of a question-paper PDF (or its companion spreadsheet) using the profile's key format, and classify each answer.

**When to use:** Verifying that answers will be matched before writing ledger rows.

**Examples:**
• Inline keys: "Parse the answer key of allen/ch5.pdf with the allen profile"
• Companion spreadsheet: "Parse the key for cd/bio_ch2.pdf with the collegedoors profile"

**Common workflows:**
1. Key check: qbank_detect_anchors → qbank_parse_answer_key → compare question numbers

**Best practices:** Formats are inline, tabular, matrix, proximity, companion and none; each answer is returned raw, normalised and with its question type.`

	ClassifyAnswerDescription = `Normalise a raw answer token and classify the question type it implies.

**When to use:** Checking how a single printed answer will be stored.

**Examples:**
• "(a)" → "A", Single Correct
• "A,C" → "A, C", One or more options correct
• "2.5" → Numerical type
• "A-P,Q; B-R" → Matrix Match

**Best practices:** An empty token returns an empty answer and type.`

	ValidatePDFDescription = `Verify a PDF is readable before processing: size limits, structure (pdfcpu relaxed validation), page count and text-layer access.

**When to use:** Before detection or a batch run on a new source.

**Examples:**
• "Validate raw data/neet_bio.pdf"

**Best practices:** Invalid files are reported in the result with a message rather than as a tool error.`

	RunManifestDescription = `Process every pending row of the input manifest: trim the page range, detect anchors, crop question and solution images, extract text, match answers, append ledger rows and mark the row processed.

**When to use:** Running the extraction pipeline from an assistant session.

**Examples:**
• "Run the manifest" (uses the configured manifest)
• "Run manifests/physics.csv"

**Common workflows:**
1. qbank_validate_pdf → qbank_detect_anchors → qbank_run_manifest → review the ledger

**Best practices:** Rows already marked processed are skipped, so re-running is safe. The summary lists processed, skipped and failed batches.`

	ServerInfoDescription = `Show server configuration: base directory, available source profiles, OCR availability and the tool list.

**When to use:** At the start of a session, to learn which profiles and paths are available.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	"qbank_detect_anchors":   DetectAnchorsDescription,
	"qbank_parse_answer_key": ParseAnswerKeyDescription,
	"qbank_classify_answer":  ClassifyAnswerDescription,
	"qbank_validate_pdf":     ValidatePDFDescription,
	"qbank_run_manifest":     RunManifestDescription,
	"qbank_server_info":      ServerInfoDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns all tool names in sorted order
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
