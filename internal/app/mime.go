package app

import (
	"log/slog"
	"mime"
)

// downloadTypes are the extensions the dashboard serves or attaches. Slim container images
// ship without /etc/mime.types, so they are registered at startup.
var downloadTypes = map[string]string{
	".css":  "text/css; charset=utf-8",
	".csv":  "text/csv; charset=utf-8",
	".pdf":  "application/pdf",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// RegisterDownloadTypes adds any download type the host mime database lacks.
func RegisterDownloadTypes(logger *slog.Logger) {
	for ext, typ := range downloadTypes {
		if mime.TypeByExtension(ext) != "" {
			continue
		}
		if err := mime.AddExtensionType(ext, typ); err != nil {
			logger.Warn("register mime type", slog.String("ext", ext), slog.Any("error", err))
		}
	}
}
