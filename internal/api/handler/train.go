package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-train-ticket-booking/internal/application"
	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/inventory"
	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/train"
)

type TrainHandler struct {
	catalogService CatalogServiceInterface
}

func NewTrainHandler(catalogService CatalogServiceInterface) *TrainHandler {
	return &TrainHandler{catalogService: catalogService}
}

type AddTrainRequest struct {
	Name        string `json:"name" validate:"required" example:"Rajdhani Express"`
	Source      string `json:"source" validate:"required" example:"Delhi"`
	Destination string `json:"destination" validate:"required" example:"Mumbai"`
	Date        string `json:"date" validate:"required" example:"2025-07-01"`
	TotalSeats  int    `json:"total_seats" validate:"omitempty,gt=0" example:"50"`
}

type TrainResponse struct {
	ID          string `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Name        string `json:"name" example:"Rajdhani Express"`
	Source      string `json:"source" example:"Delhi"`
	Destination string `json:"destination" example:"Mumbai"`
	Date        string `json:"date" example:"2025-07-01"`
	CreatedAt   string `json:"created_at" example:"2025-06-01T10:00:00+09:00"`
}

type SeatClassResponse struct {
	Class      string `json:"class" example:"SL"`
	Quota      string `json:"quota" example:"GENERAL"`
	TotalSeats int    `json:"total_seats" example:"50"`
	Available  int    `json:"available" example:"48"`
}

type TrainDetailResponse struct {
	TrainResponse
	SeatClasses []SeatClassResponse `json:"seat_classes"`
}

func toTrainResponse(t *train.Train) TrainResponse {
	return TrainResponse{
		ID:          t.ID,
		Name:        t.Name,
		Source:      t.Source,
		Destination: t.Destination,
		Date:        t.Date.Format(train.DateLayout),
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
	}
}

// Add godoc
// @Summary 列車を登録
// @Description 新しい列車とデフォルトの座席クラスを登録します
// @Tags trains
// @Accept json
// @Produce json
// @Param request body AddTrainRequest true "列車情報"
// @Success 201 {object} TrainResponse
// @Failure 400 {object} map[string]string
// @Router /trains [post]
func (h *TrainHandler) Add(c echo.Context) error {
	var req AddTrainRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	date, err := time.Parse(train.DateLayout, req.Date)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "運行日の形式が不正です")
	}

	t, err := h.catalogService.AddTrain(c.Request().Context(), application.AddTrainInput{
		Name:        req.Name,
		Source:      req.Source,
		Destination: req.Destination,
		Date:        date,
		TotalSeats:  req.TotalSeats,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, toTrainResponse(t))
}

type AddSeatClassRequest struct {
	Class      string `json:"class" validate:"required" example:"3A"`
	Quota      string `json:"quota" example:"GENERAL"`
	TotalSeats int    `json:"total_seats" validate:"required,gt=0" example:"30"`
}

// AddSeatClass godoc
// @Summary 座席クラスを追加
// @Description 列車に座席クラスのバケットを追加します
// @Tags trains
// @Accept json
// @Produce json
// @Param id path string true "列車ID"
// @Param request body AddSeatClassRequest true "座席クラス情報"
// @Success 201 {object} SeatClassResponse
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string "座席クラスが既に存在"
// @Router /trains/{id}/seat-classes [post]
func (h *TrainHandler) AddSeatClass(c echo.Context) error {
	var req AddSeatClassRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	b, err := h.catalogService.AddSeatClass(c.Request().Context(), application.AddSeatClassInput{
		TrainID:    c.Param("id"),
		Class:      req.Class,
		Quota:      req.Quota,
		TotalSeats: req.TotalSeats,
	})
	if err != nil {
		switch {
		case errors.Is(err, train.ErrTrainNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, inventory.ErrBucketAlreadyExists):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, SeatClassResponse{
		Class:      b.Class,
		Quota:      b.Quota,
		TotalSeats: b.TotalSeats,
		Available:  b.Available(),
	})
}

// Search godoc
// @Summary 列車を検索
// @Description 出発地・到着地・運行日で列車を検索します（部分一致なし）
// @Tags trains
// @Produce json
// @Param source query string false "出発地"
// @Param destination query string false "到着地"
// @Param date query string false "運行日（YYYY-MM-DD）"
// @Success 200 {array} TrainResponse
// @Failure 400 {object} map[string]string
// @Router /trains [get]
func (h *TrainHandler) Search(c echo.Context) error {
	filter := train.SearchFilter{
		Source:      c.QueryParam("source"),
		Destination: c.QueryParam("destination"),
	}
	if d := c.QueryParam("date"); d != "" {
		date, err := time.Parse(train.DateLayout, d)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "運行日の形式が不正です")
		}
		filter.Date = &date
	}

	trains, err := h.catalogService.SearchTrains(c.Request().Context(), filter)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp := make([]TrainResponse, len(trains))
	for i, t := range trains {
		resp[i] = toTrainResponse(t)
	}
	return c.JSON(http.StatusOK, resp)
}

// GetByID godoc
// @Summary 列車を取得
// @Description 指定IDの列車を座席クラスと残席数付きで取得します
// @Tags trains
// @Produce json
// @Param id path string true "列車ID"
// @Success 200 {object} TrainDetailResponse
// @Failure 404 {object} map[string]string
// @Router /trains/{id} [get]
func (h *TrainHandler) GetByID(c echo.Context) error {
	id := c.Param("id")
	t, buckets, err := h.catalogService.GetTrain(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, train.ErrTrainNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp := TrainDetailResponse{TrainResponse: toTrainResponse(t)}
	for _, b := range buckets {
		available, err := h.catalogService.Availability(c.Request().Context(), b.Key())
		if err != nil {
			available = b.Available()
		}
		resp.SeatClasses = append(resp.SeatClasses, SeatClassResponse{
			Class:      b.Class,
			Quota:      b.Quota,
			TotalSeats: b.TotalSeats,
			Available:  available,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

// Availability godoc
// @Summary 残席数を取得
// @Description 指定バケットの残席数を取得します（表示用スナップショット）
// @Tags trains
// @Produce json
// @Param id path string true "列車ID"
// @Param class query string true "座席クラス"
// @Param quota query string false "クォータ"
// @Success 200 {object} map[string]int
// @Failure 404 {object} map[string]string
// @Router /trains/{id}/availability [get]
func (h *TrainHandler) Availability(c echo.Context) error {
	key := inventory.BucketKey{
		TrainID: c.Param("id"),
		Class:   c.QueryParam("class"),
		Quota:   c.QueryParam("quota"),
	}
	if key.Class == "" {
		key.Class = inventory.DefaultClass
	}
	if key.Quota == "" {
		key.Quota = inventory.DefaultQuota
	}

	available, err := h.catalogService.Availability(c.Request().Context(), key)
	if err != nil {
		if errors.Is(err, inventory.ErrBucketNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int{"available": available})
}
