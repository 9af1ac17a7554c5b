package httpclient

type titledMessage struct {
	Title   string
	Message string
}

var statusMessages = map[int]titledMessage{
	400: {"Invalid Request", "Please check your input and try again"},
	401: {"Session Expired", "Your session has expired. Please login again"},
	403: {"Access Denied", "You don't have permission to perform this action"},
	404: {"Not Found", "The requested resource was not found"},
	409: {"Conflict", "This resource already exists"},
	422: {"Validation Error", "Please check your input and try again"},
	429: {"Too Many Requests", "You are making requests too quickly. Please wait a moment."},
	500: {"Server Error", "Something went wrong. Please try again later"},
	502: {"Server Down", "The server is temporarily unavailable. Please try again later"},
	503: {"Service Unavailable", "The service is temporarily unavailable. Please try again later"},
	504: {"Gateway Timeout", "The server took too long to respond. Please try again"},
}

var (
	msgNetwork     = titledMessage{"Connection Error", "Please check your internet connection and try again"}
	msgServerDown  = titledMessage{"Server Unavailable", "The server is currently down. Please try again later"}
	msgThrottling  = titledMessage{"Rate Limited", "Too many requests. Please wait before trying again"}
	msgWeakNetwork = titledMessage{"Poor Connection", "Your connection seems weak. Please check your network"}
	msgTimeout     = titledMessage{"Request Timeout", "The request took too long. Please try again"}
	msgUnknown     = titledMessage{"Error", "An unexpected error occurred. Please try again"}
)

// backendErrorCodes maps the symbolic "error" field of API bodies.
var backendErrorCodes = map[string]titledMessage{
	"invalid_otp":       {"Invalid Code", "Incorrect OTP. Try again."},
	"otp_expired":       {"Code Expired", "OTP expired. Request a new one."},
	"too_many_attempts": {"Too Many Attempts", "Too many attempts. Request new OTP."},
	"user_not_found":    {"Account Not Found", "Account not found. Contact your admin."},
	"account_inactive":  {"Account Inactive", "Account deactivated. Contact your admin."},

	"duplicate_employee":      {"Duplicate Account", "Email or phone already exists."},
	"employee_not_found":      {"Employee Not Found", "Employee not found."},
	"employee_already_active": {"Employee Already Active", "Employee is already active."},
	"duplicate_contact":       {"Contact Already Exists", "Email or phone already in use."},

	"duplicate_doctor": {"Doctor Already Exists", "A doctor with this email or phone already exists."},
	"doctor_not_found": {"Doctor Not Found", "Doctor not found."},

	"duplicate_assignment": {"Assignment Already Exists", "Employee already has an active assignment with this doctor."},
	"assignment_not_found": {"Assignment Not Found", "Assignment not found."},

	"distance_exceeded": {"Too Far Away", "You are too far from the doctor location. Please move closer."},

	"notification_not_found": {"Notification Not Found", "Notification not found."},
}

// denialPhrases mark a 401 that is really a role check, not an expired session.
var denialPhrases = []string{"access required", "admin access", "employee access"}
