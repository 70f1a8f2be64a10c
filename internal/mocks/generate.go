package mocks

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name Service --dir ../domain/lobby --output domain/lobby --outpkg lobbymock --filename service_mock.go
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name Roster --dir ../domain/identity --output domain/identity --outpkg identitymock --filename roster_mock.go
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name RoleSource --dir ../domain/identity --output domain/identity --outpkg identitymock --filename role_source_mock.go
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name Repository --dir ../domain/session --output domain/session --outpkg sessionmock --filename repository_mock.go
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name EventScheduler --dir ../domain/channel --output domain/channel --outpkg channelmock --filename event_scheduler_mock.go
