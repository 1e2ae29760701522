package download

import "github.com/google/wire"

// ProviderSet Download 基础设施层 ProviderSet
var ProviderSet = wire.NewSet(
	NewHTTPDownloader,
	wire.Bind(new(Downloader), new(*HTTPDownloader)),
)
