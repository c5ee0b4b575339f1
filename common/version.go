package common

// PackageName identifies the service in logs.
const PackageName = "secure-image-backend"

// MetricsNamespace prefixes Prometheus metric names. Hyphens are not legal
// in metric names, hence the separate constant.
const MetricsNamespace = "secure_image_backend"

// Version is set at build time via -ldflags.
var Version = "dev"
