package service

import "errors"

var (
	ErrUserAlreadyExists  = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrCannotDeleteSelf   = errors.New("cannot delete your own account")

	ErrProjectNotFound    = errors.New("project not found")
	ErrChatRoomNotFound   = errors.New("chat room not found")
	ErrMessageNotFound    = errors.New("message not found")
	ErrAnnotationNotFound = errors.New("annotation not found")
	ErrForbidden          = errors.New("not authorized to access this project")

	ErrAlreadyAssigned  = errors.New("user already assigned to project")
	ErrNotAssigned      = errors.New("user is not assigned to project")
	ErrAlreadyAnnotated = errors.New("you have already annotated this message")

	ErrEmptyImport = errors.New("import file has no data rows")
	ErrInvalidCSV  = errors.New("invalid CSV file")
)
