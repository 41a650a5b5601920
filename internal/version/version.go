// ABOUTME: Build identification constants
// ABOUTME: Reported in control handshakes and logs

package version

const (
	Product      = "Tonewheel Engine"
	Manufacturer = "Tonewheel Audio"
	Version      = "0.3.0"
)
