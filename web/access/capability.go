package access

// Capability is a panel feature gated by role alone.
type Capability string

const (
	ViewDashboard     Capability = "dashboard.view"
	DownloadAlert     Capability = "alerts.download"
	ChangeOwnPassword Capability = "password.change"
	UploadAlerts      Capability = "alerts.upload"
	ExportAlerts      Capability = "alerts.export"
	UpdateVerdicts    Capability = "alerts.update"
	ListUsers         Capability = "users.list"
	AddUser           Capability = "users.add"
)

// AllCapabilities lists every capability in a stable order.
var AllCapabilities = []Capability{
	ViewDashboard, DownloadAlert, ChangeOwnPassword, UploadAlerts,
	ExportAlerts, UpdateVerdicts, ListUsers, AddUser,
}

var grants = map[Role]map[Capability]bool{
	ReadOnly: {
		ViewDashboard:     true,
		ChangeOwnPassword: true,
	},
	Admin: {
		ViewDashboard:     true,
		DownloadAlert:     true,
		ChangeOwnPassword: true,
		UploadAlerts:      true,
		ExportAlerts:      true,
		UpdateVerdicts:    true,
		ListUsers:         true,
	},
	Superadmin: {
		ViewDashboard:     true,
		DownloadAlert:     true,
		ChangeOwnPassword: true,
		UploadAlerts:      true,
		ExportAlerts:      true,
		UpdateVerdicts:    true,
		ListUsers:         true,
		AddUser:           true,
	},
}

// Allows reports whether the caller holds the capability. An unknown role or
// a caller without a username holds none.
func Allows(c Caller, capability Capability) bool {
	if !c.valid() {
		return false
	}
	return grants[c.Role][capability]
}

// Capabilities lists what the caller may do, for rendering navigation.
func Capabilities(c Caller) map[Capability]bool {
	out := make(map[Capability]bool)
	if !c.valid() {
		return out
	}
	for capability, ok := range grants[c.Role] {
		if ok {
			out[capability] = true
		}
	}
	return out
}
