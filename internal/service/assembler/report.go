package assembler

import "fmt"

// Step names a stage of the assembly pipeline.
type Step string

// Pipeline steps in execution order. StepCleanup runs last on every run that
// got past StepCheckSource.
const (
	StepCheckSource  Step = "check_source"
	StepResetStaging Step = "reset_staging"
	StepCopyBundle   Step = "copy_bundle"
	StepLinkShortcut Step = "link_shortcut"
	StepResetOutput  Step = "reset_output"
	StepCreateImage  Step = "create_image"
	StepReportSize   Step = "report_size"
	StepCleanup      Step = "cleanup"
)

// Report describes what a run did.
type Report struct {
	// Steps lists the steps that were entered, in order.
	Steps []Step
	// OutputPath is the image location.
	OutputPath string
	// Size is the image size in bytes, set by StepReportSize.
	Size int64
	// HumanSize is Size rendered by FormatSize.
	HumanSize string
	// Checksum is the base64 SHA-512 of the image when checksums are enabled.
	Checksum string
	// Verified is true when hdiutil verify accepted the image.
	Verified bool
}

func (r *Report) enter(step Step) {
	r.Steps = append(r.Steps, step)
}

// FormatSize renders size in binary megabytes with one decimal place.
func FormatSize(size int64) string {
	const mebibyte = 1 << 20

	return fmt.Sprintf("%.1f MB", float64(size)/mebibyte)
}
