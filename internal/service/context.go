package service

import "context"

type contextKey string

const (
	userIDKey    contextKey = "user_id"
	requestIDKey contextKey = "request_id"
	ipKey        contextKey = "ip"
	userAgentKey contextKey = "user_agent"
)

// SystemOperator 未开启认证时使用的操作人
const SystemOperator = "system"

// RequestInfo 请求上下文信息,用于审计与状态历史
type RequestInfo struct {
	UserID    string
	RequestID string
	IP        string
	UserAgent string
}

// WithRequestInfo 将请求信息写入 context
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	ctx = context.WithValue(ctx, userIDKey, info.UserID)
	ctx = context.WithValue(ctx, requestIDKey, info.RequestID)
	ctx = context.WithValue(ctx, ipKey, info.IP)
	return context.WithValue(ctx, userAgentKey, info.UserAgent)
}

// GetUserID 从 context 获取用户 ID
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

// GetRequestID 从 context 获取请求 ID
func GetRequestID(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDKey).(string)
	return requestID
}

// GetClientIP 从 context 获取客户端 IP
func GetClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(ipKey).(string)
	return ip
}

// GetUserAgent 从 context 获取 User Agent
func GetUserAgent(ctx context.Context) string {
	userAgent, _ := ctx.Value(userAgentKey).(string)
	return userAgent
}

// operatorFromContext 当前操作人,匿名请求记为 system
func operatorFromContext(ctx context.Context) string {
	if userID := GetUserID(ctx); userID != "" {
		return userID
	}
	return SystemOperator
}
