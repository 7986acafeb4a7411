package bridge

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"appscanner/internal/infrastructure/errors"
	"appscanner/internal/infrastructure/logging"
	"appscanner/internal/types"
)

// ChannelName is the name the front-end addresses the bridge by
const ChannelName = "app_scanner"

// Channel methods
const (
	MethodGetInstalledApps = "getInstalledApps"
	MethodGetAppDetails    = "getAppDetails"
	MethodUninstallApp     = "uninstallApp"
)

// ArgPackageName is the argument key carrying a package identifier
const ArgPackageName = "packageName"

// ReplyErrorCode is the code of every error reply
const ReplyErrorCode = "ERROR"

const (
	msgPackageNameRequired = "Package name is required"
	msgListFailed          = "Failed to get installed apps: "
	msgDetailFailed        = "Failed to get app details: "
	msgUninstallFailed     = "Failed to uninstall app: "
)

// Operations is the bridge surface the channel dispatches to
type Operations interface {
	ListInstalledApplications(ctx context.Context) ([]types.InstalledApplication, error)
	GetApplicationDetail(ctx context.Context, packageName string) (*types.ApplicationDetail, error)
	RequestUninstall(ctx context.Context, packageName string) (bool, error)
}

var _ Operations = (*Inventory)(nil)

// Journal receives one entry per handled call
type Journal interface {
	Record(ctx context.Context, entry types.ActivityEntry) error
}

// MethodCall is a named request with optional arguments
type MethodCall struct {
	Method    string         `json:"method"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ReplyError is the (code, message, details) error triple
type ReplyError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details"`
}

// Reply is exactly one of a success value, an error or not-implemented
type Reply struct {
	Value          any         `json:"value,omitempty"`
	Error          *ReplyError `json:"error,omitempty"`
	NotImplemented bool        `json:"notImplemented,omitempty"`
}

// Success wraps a result value
func Success(value any) Reply {
	return Reply{Value: value}
}

// Failure builds an ERROR reply with nil details
func Failure(message string) Reply {
	return Reply{Error: &ReplyError{Code: ReplyErrorCode, Message: message}}
}

// NotImplementedReply answers an unknown method
func NotImplementedReply() Reply {
	return Reply{NotImplemented: true}
}

// IsError reports whether the reply carries an error
func (r Reply) IsError() bool {
	return r.Error != nil
}

// Channel routes method calls to the bridge operations and shapes the replies
type Channel struct {
	ops     Operations
	journal Journal
	logger  logging.Logger
}

// NewChannel creates a Channel; journal may be nil
func NewChannel(ops Operations, journal Journal, logger logging.Logger) *Channel {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Channel{ops: ops, journal: journal, logger: logger}
}

// Handle answers one call synchronously. It never panics.
func (c *Channel) Handle(ctx context.Context, call MethodCall) (reply Reply) {
	start := time.Now()
	packageName, _ := call.Arguments[ArgPackageName].(string)
	outcome := types.OutcomeOK

	c.logger.Debug("Method called", "method", call.Method)

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Channel handler panicked", "method", call.Method, "panic", fmt.Sprint(r))
			reply = Failure(failurePrefix(call.Method) + fmt.Sprint(r))
			outcome = types.OutcomeError
		}
		c.record(ctx, call.Method, packageName, outcome, reply, time.Since(start))
	}()

	switch call.Method {
	case MethodGetInstalledApps:
		reply, outcome = c.getInstalledApps(ctx)
	case MethodGetAppDetails:
		reply, outcome = c.getAppDetails(ctx, call.Arguments)
	case MethodUninstallApp:
		reply, outcome = c.uninstallApp(ctx, call.Arguments)
	default:
		reply, outcome = NotImplementedReply(), types.OutcomeNotImplemented
	}
	return reply
}

func (c *Channel) getInstalledApps(ctx context.Context) (Reply, types.Outcome) {
	apps, err := c.ops.ListInstalledApplications(ctx)
	if err != nil {
		logging.LogError(c.logger, err, MethodGetInstalledApps, nil)
		return Failure(msgListFailed + causeMessage(err)), types.OutcomeError
	}

	list := make([]map[string]any, 0, len(apps))
	for _, app := range apps {
		list = append(list, app.ToMap())
	}
	if len(list) == 0 {
		return Success(list), types.OutcomeEmpty
	}
	return Success(list), types.OutcomeOK
}

func (c *Channel) getAppDetails(ctx context.Context, args map[string]any) (Reply, types.Outcome) {
	packageName, ok := args[ArgPackageName].(string)
	if !ok {
		return Failure(msgPackageNameRequired), types.OutcomeError
	}

	detail, err := c.ops.GetApplicationDetail(ctx, packageName)
	if err != nil {
		if errors.IsMissingArgument(err) {
			return Failure(msgPackageNameRequired), types.OutcomeError
		}
		logging.LogError(c.logger, err, MethodGetAppDetails, map[string]interface{}{"package": packageName})
		return Failure(msgDetailFailed + causeMessage(err)), types.OutcomeError
	}
	if detail == nil {
		return Success(map[string]any{}), types.OutcomeEmpty
	}
	return Success(detail.ToMap()), types.OutcomeOK
}

func (c *Channel) uninstallApp(ctx context.Context, args map[string]any) (Reply, types.Outcome) {
	packageName, ok := args[ArgPackageName].(string)
	c.logger.Debug("uninstallApp called", "package", packageName)
	if !ok {
		c.logger.Error("Package name is missing", "method", MethodUninstallApp)
		return Failure(msgPackageNameRequired), types.OutcomeError
	}

	accepted, err := c.ops.RequestUninstall(ctx, packageName)
	if err != nil {
		if errors.IsMissingArgument(err) {
			return Failure(msgPackageNameRequired), types.OutcomeError
		}
		logging.LogError(c.logger, err, MethodUninstallApp, map[string]interface{}{"package": packageName})
		return Failure(msgUninstallFailed + causeMessage(err)), types.OutcomeError
	}
	return Success(accepted), types.OutcomeOK
}

// record is best effort; a journal failure never changes the reply
func (c *Channel) record(ctx context.Context, method, packageName string, outcome types.Outcome, reply Reply, elapsed time.Duration) {
	if c.journal == nil {
		return
	}

	entry := types.ActivityEntry{
		Method:      method,
		PackageName: packageName,
		Outcome:     outcome,
		DurationMs:  elapsed.Milliseconds(),
		CreatedAt:   time.Now(),
	}
	if reply.Error != nil {
		entry.Message = reply.Error.Message
	}

	if err := c.journal.Record(context.WithoutCancel(ctx), entry); err != nil {
		c.logger.Warn("Activity journal write failed", "method", method, "error", err)
	}
}

func failurePrefix(method string) string {
	switch method {
	case MethodGetInstalledApps:
		return msgListFailed
	case MethodGetAppDetails:
		return msgDetailFailed
	case MethodUninstallApp:
		return msgUninstallFailed
	default:
		return "Failed to handle " + method + ": "
	}
}

// causeMessage strips the classification suffix of a BridgeError
func causeMessage(err error) string {
	var bridgeErr *errors.BridgeError
	if stderrors.As(err, &bridgeErr) && bridgeErr.Err != nil {
		return bridgeErr.Err.Error()
	}
	return err.Error()
}
