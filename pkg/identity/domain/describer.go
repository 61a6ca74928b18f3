package domain

import "fmt"

// ErrorCode identifies a business-rule failure.
type ErrorCode string

const (
	CodeDefaultError                    ErrorCode = "DefaultError"
	CodeConcurrencyFailure              ErrorCode = "ConcurrencyFailure"
	CodePasswordMismatch                ErrorCode = "PasswordMismatch"
	CodeInvalidToken                    ErrorCode = "InvalidToken"
	CodeInvalidUserName                 ErrorCode = "InvalidUserName"
	CodeInvalidEmail                    ErrorCode = "InvalidEmail"
	CodeInvalidPhoneNumber              ErrorCode = "InvalidPhoneNumber"
	CodeDuplicateUserName               ErrorCode = "DuplicateUserName"
	CodeDuplicateEmail                  ErrorCode = "DuplicateEmail"
	CodeInvalidRoleName                 ErrorCode = "InvalidRoleName"
	CodeRoleNameTooShort                ErrorCode = "RoleNameTooShort"
	CodeDuplicateRoleName               ErrorCode = "DuplicateRoleName"
	CodeUserAlreadyHasPassword          ErrorCode = "UserAlreadyHasPassword"
	CodeUserLockoutNotEnabled           ErrorCode = "UserLockoutNotEnabled"
	CodeUserLockedOut                   ErrorCode = "UserLockedOut"
	CodeUserAlreadyInRole               ErrorCode = "UserAlreadyInRole"
	CodeUserNotInRole                   ErrorCode = "UserNotInRole"
	CodeClaimAlreadyAssociated          ErrorCode = "ClaimAlreadyAssociated"
	CodeKeyTooLong                      ErrorCode = "KeyTooLong"
	CodePasswordTooShort                ErrorCode = "PasswordTooShort"
	CodePasswordRequiresUniqueChars     ErrorCode = "PasswordRequiresUniqueChars"
	CodePasswordRequiresNonAlphanumeric ErrorCode = "PasswordRequiresNonAlphanumeric"
	CodePasswordRequiresDigit           ErrorCode = "PasswordRequiresDigit"
	CodePasswordRequiresLower           ErrorCode = "PasswordRequiresLower"
	CodePasswordRequiresUpper           ErrorCode = "PasswordRequiresUpper"
)

// Describer turns an error code and its arguments into an Error. Host
// applications swap it out to localise descriptions.
type Describer interface {
	Describe(code ErrorCode, args ...any) Error
}

var defaultMessages = map[ErrorCode]string{
	CodeDefaultError:                    "An unknown failure has occurred.",
	CodeConcurrencyFailure:              "Optimistic concurrency failure, object has been modified.",
	CodePasswordMismatch:                "Incorrect password.",
	CodeInvalidToken:                    "Invalid token.",
	CodeInvalidUserName:                 "User name '%v' is invalid, can only contain letters or digits.",
	CodeInvalidEmail:                    "Email '%v' is invalid.",
	CodeInvalidPhoneNumber:              "Phone number '%v' is invalid.",
	CodeDuplicateUserName:               "User name '%v' is already taken.",
	CodeDuplicateEmail:                  "Email '%v' is already taken.",
	CodeInvalidRoleName:                 "Role name '%v' is invalid.",
	CodeRoleNameTooShort:                "Role name '%v' must be at least %v characters.",
	CodeDuplicateRoleName:               "Role name '%v' is already taken.",
	CodeUserAlreadyHasPassword:          "User already has a password set.",
	CodeUserLockoutNotEnabled:           "Lockout is not enabled for this user.",
	CodeUserLockedOut:                   "User is locked out.",
	CodeUserAlreadyInRole:               "User already in role '%v'.",
	CodeUserNotInRole:                   "User is not in role '%v'.",
	CodeClaimAlreadyAssociated:          "Claim '%v' is already associated with this user.",
	CodeKeyTooLong:                      "Key exceeds the maximum length of %v.",
	CodePasswordTooShort:                "Passwords must be at least %v characters.",
	CodePasswordRequiresUniqueChars:     "Passwords must use at least %v different characters.",
	CodePasswordRequiresNonAlphanumeric: "Passwords must have at least one non alphanumeric character.",
	CodePasswordRequiresDigit:           "Passwords must have at least one digit ('0'-'9').",
	CodePasswordRequiresLower:           "Passwords must have at least one lowercase ('a'-'z').",
	CodePasswordRequiresUpper:           "Passwords must have at least one uppercase ('A'-'Z').",
}

// DefaultDescriber describes errors in English.
type DefaultDescriber struct{}

func (DefaultDescriber) Describe(code ErrorCode, args ...any) Error {
	msg, ok := defaultMessages[code]
	if !ok {
		msg = defaultMessages[CodeDefaultError]
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	return Error{Code: code, Description: msg}
}
