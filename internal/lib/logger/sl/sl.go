package sl

import "log/slog"

// Err はエラーを "error" キーのslog属性に変換します
func Err(err error) slog.Attr {
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}
