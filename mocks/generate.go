package mocks

//go:generate mockgen -destination=./mock_job_store.go -package=mocks github.com/rxtech-lab/lean-toolbox/internal/jobs Store
//go:generate mockgen -destination=./mock_data_source.go -package=mocks github.com/rxtech-lab/lean-toolbox/pkg/marketdata/provider DataSource
//go:generate mockgen -destination=./mock_downloader.go -package=mocks github.com/rxtech-lab/lean-toolbox/internal/service Downloader
//go:generate mockgen -destination=./mock_gateway_controller.go -package=mocks github.com/rxtech-lab/lean-toolbox/internal/gateway Controller
