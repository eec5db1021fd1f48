package errors

// ErrorBuilder assembles a ClassifiedError step by step.
type ErrorBuilder struct {
	category ErrorCategory
	severity ErrorSeverity
	message  string
	cause    error
	context  ErrorContext
}

// NewError starts a builder for the given category and message.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	return &ErrorBuilder{
		category: category,
		severity: SeverityError,
		message:  message,
		context:  make(ErrorContext),
	}
}

// WrapError starts a builder whose cause is err.
func WrapError(err error, category ErrorCategory, message string) *ErrorBuilder {
	return NewError(category, message).WithCause(err)
}

// WithCause sets the underlying error.
func (b *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	b.cause = err
	return b
}

// WithSeverity sets the error severity.
func (b *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	b.severity = severity
	return b
}

// WithContext adds a context key-value pair.
func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.context = b.context.Set(key, value)
	return b
}

// WithContextMap adds multiple context values.
func (b *ErrorBuilder) WithContextMap(ctx ErrorContext) *ErrorBuilder {
	b.context = b.context.Merge(ctx)
	return b
}

// Fatal sets the severity to fatal.
func (b *ErrorBuilder) Fatal() *ErrorBuilder { return b.WithSeverity(SeverityFatal) }

// Warning sets the severity to warning.
func (b *ErrorBuilder) Warning() *ErrorBuilder { return b.WithSeverity(SeverityWarning) }

// Build creates the final ClassifiedError.
func (b *ErrorBuilder) Build() *ClassifiedError {
	return &ClassifiedError{
		category: b.category,
		severity: b.severity,
		message:  b.message,
		cause:    b.cause,
		context:  b.context,
	}
}

// ConfigError reports a missing, unreadable or invalid configuration.
func ConfigError(message string) *ErrorBuilder {
	return NewError(CategoryConfig, message).Fatal()
}

// ValidationError reports invalid user input.
func ValidationError(message string) *ErrorBuilder {
	return NewError(CategoryValidation, message).Fatal()
}

// ContentError reports a content file that cannot be turned into a page.
func ContentError(message string) *ErrorBuilder {
	return NewError(CategoryContent, message)
}

// TemplateNotFound reports a render request for an unknown layout.
func TemplateNotFound(name string) *ErrorBuilder {
	return NewError(CategoryTemplate, "template not found").WithContext("template", name)
}

// TemplateError reports a layout that fails to parse or execute.
func TemplateError(message string) *ErrorBuilder {
	return NewError(CategoryTemplate, message)
}

// AssetProcessingError reports one asset that could not be optimized.
// It is recovered from: the pipeline skips the asset and continues.
func AssetProcessingError(message string) *ErrorBuilder {
	return NewError(CategoryAsset, message).Warning()
}

// FileSystemError reports a failed read, write or rename.
func FileSystemError(message string) *ErrorBuilder {
	return NewError(CategoryFileSystem, message)
}

// BuildError reports a failed build stage.
func BuildError(message string) *ErrorBuilder {
	return NewError(CategoryBuild, message)
}

// WatcherError reports a file-watch backend failure. Watch loops log it and continue.
func WatcherError(message string) *ErrorBuilder {
	return NewError(CategoryWatcher, message).Warning()
}

// PortInUseError reports that the preview server could not bind its port.
func PortInUseError(port int) *ErrorBuilder {
	return NewError(CategoryServer, "port already in use").Fatal().WithContext("port", port)
}

// ServerError reports a preview server failure other than binding.
func ServerError(message string) *ErrorBuilder {
	return NewError(CategoryServer, message)
}

// HistoryError reports a build history store failure.
func HistoryError(message string) *ErrorBuilder {
	return NewError(CategoryHistory, message)
}

// NotFoundError reports a missing resource.
func NotFoundError(message string) *ErrorBuilder {
	return NewError(CategoryNotFound, message)
}

// InternalError reports a programming error.
func InternalError(message string) *ErrorBuilder {
	return NewError(CategoryInternal, message).Fatal()
}
