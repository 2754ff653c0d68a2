package usecases

import (
	"context"

	"github.com/opencat-io/opencat/internal/domain/app"
	"github.com/opencat-io/opencat/internal/shared/constants"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

type ListAppsQuery struct {
	Page     int
	PageSize int
}

type ListAppsResult struct {
	Apps     []AppDTO `json:"apps"`
	Total    int64    `json:"total"`
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
}

type ListAppsUseCase struct {
	appRepo app.Repository
	logger  logger.Interface
}

func NewListAppsUseCase(appRepo app.Repository, logger logger.Interface) *ListAppsUseCase {
	return &ListAppsUseCase{
		appRepo: appRepo,
		logger:  logger,
	}
}

func (uc *ListAppsUseCase) Execute(ctx context.Context, query ListAppsQuery) (*ListAppsResult, error) {
	page := query.Page
	if page < 1 {
		page = constants.DefaultPage
	}
	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = constants.DefaultPageSize
	}
	if pageSize > constants.MaxPageSize {
		pageSize = constants.MaxPageSize
	}

	apps, total, err := uc.appRepo.List(ctx, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}

	result := &ListAppsResult{
		Apps:     make([]AppDTO, len(apps)),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
	for i, a := range apps {
		result.Apps[i] = *toAppDTO(a)
	}
	return result, nil
}
