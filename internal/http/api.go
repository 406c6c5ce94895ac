package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"courier-dashboard/internal/auth"
	"courier-dashboard/internal/domain"
	"courier-dashboard/internal/service"
	"courier-dashboard/internal/storage"
)

// Config carries the collaborators and cookie settings of a Handler.
type Config struct {
	Authenticator  service.Authenticator
	Shell          *service.Shell
	Dashboards     service.DashboardService
	Exports        *service.ExportService
	Tokens         *auth.Manager
	CookieName     string
	SecureCookie   bool
	// AllowedOrigins lists the browser origins granted credentialed CORS access.
	AllowedOrigins []string
	Logger         logrus.FieldLogger
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	authenticator service.Authenticator
	shell         *service.Shell
	dashboards    service.DashboardService
	exports       *service.ExportService
	tokens        *auth.Manager
	cookieName    string
	secureCookie  bool
	origins       []string
	logger        logrus.FieldLogger
}

func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "courier_session"
	}
	return &Handler{
		authenticator: cfg.Authenticator,
		shell:         cfg.Shell,
		dashboards:    cfg.Dashboards,
		exports:       cfg.Exports,
		tokens:        cfg.Tokens,
		cookieName:    cfg.CookieName,
		secureCookie:  cfg.SecureCookie,
		origins:       cfg.AllowedOrigins,
		logger:        cfg.Logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestLogger(h.logger), corsMiddleware(h.origins))

	api := router.Group("/api")
	api.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
	})

	withSession := api.Group("", h.sessionMiddleware())
	{
		withSession.GET("/session", h.getSession)
		withSession.POST("/login", h.login)
		withSession.POST("/logout", h.logout)
	}

	dashboard := withSession.Group("/dashboard", requireSession())
	{
		dashboard.GET("", h.getDashboard)
		dashboard.GET("/routes", h.listRoutes)
		dashboard.GET("/scans", h.listScans)
		dashboard.GET("/export", h.exportDataset)
		dashboard.GET("/exports", h.listExports)
	}
}

type loginRequest struct {
	LoginID    string `json:"loginId"`
	Secret     string `json:"secret"`
	RememberMe bool   `json:"rememberMe"`
}

type SessionResponse struct {
	Authenticated bool          `json:"authenticated"`
	User          *UserResponse `json:"user,omitempty"`
	ExpiresAt     *string       `json:"expiresAt,omitempty"`
}

type UserResponse struct {
	LoginID     string      `json:"loginId"`
	DisplayName string      `json:"displayName"`
	Role        domain.Role `json:"role"`
	CourierID   string      `json:"courierId,omitempty"`
}

func (h *Handler) getSession(c *gin.Context) {
	sess := CurrentSession(c)
	if sess == nil {
		if presentedSessionID(c) != "" {
			h.clearCookie(c)
		}
		c.JSON(http.StatusOK, SessionResponse{Authenticated: false})
		return
	}
	c.JSON(http.StatusOK, sessionToResponse(sess))
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, ErrCodeInvalidRequest, "invalid login payload")
		return
	}

	user, err := h.authenticator.Authenticate(c.Request.Context(), req.LoginID, req.Secret)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			BadRequest(c, ErrCodeValidation, "Please enter both username and password")
		case errors.Is(err, service.ErrInvalidCredentials):
			h.logger.WithField("login_id", req.LoginID).Warn("login attempt failed")
			Unauthorized(c, ErrCodeInvalidCredentials, "Invalid username or password")
		case errors.Is(err, service.ErrLoginInProgress):
			ErrorResponse(c, http.StatusConflict, ErrCodeLoginInProgress, "a sign-in for this user is already in progress")
		default:
			h.logger.WithError(err).Error("authenticate")
			InternalError(c, "failed to sign in")
		}
		return
	}

	// a client signing in again replaces its previous session
	if previous := presentedSessionID(c); previous != "" {
		if err := h.shell.OnLogout(c.Request.Context(), previous); err != nil {
			h.logger.WithError(err).Warn("clear previous session")
		}
	}

	sess, err := h.shell.OnLoginSuccess(c.Request.Context(), user, req.RememberMe)
	if err != nil {
		h.logger.WithError(err).Error("open session")
		InternalError(c, "failed to create session")
		return
	}

	token, err := h.tokens.GenerateToken(sess.ID, sess.ExpiresAt)
	if err != nil {
		h.logger.WithError(err).Error("sign session token")
		InternalError(c, "failed to create session")
		return
	}
	h.setCookie(c, token, sess.ExpiresAt)

	c.JSON(http.StatusOK, sessionToResponse(sess))
}

func (h *Handler) logout(c *gin.Context) {
	if id := presentedSessionID(c); id != "" {
		if err := h.shell.OnLogout(c.Request.Context(), id); err != nil {
			h.logger.WithError(err).Error("logout")
			InternalError(c, "failed to sign out")
			return
		}
	}
	h.clearCookie(c)
	c.Status(http.StatusNoContent)
}

type DashboardResponse struct {
	User                   UserResponse            `json:"user"`
	IsCourier              bool                    `json:"isCourier"`
	RouteCount             int                     `json:"routeCount"`
	ScanCount              int                     `json:"scanCount"`
	RouteCompliantCount    int                     `json:"routeCompliantCount"`
	RouteNoncompliantCount int                     `json:"routeNoncompliantCount"`
	ScanCompliantCount     int                     `json:"scanCompliantCount"`
	ScanNoncompliantCount  int                     `json:"scanNoncompliantCount"`
	ScanComplianceRate     int                     `json:"scanComplianceRate"`
	KPIs                   []service.KPI           `json:"kpis"`
	ScanTypes              []service.ScanTypeCount `json:"scanTypes"`
	ExportArchiveEnabled   bool                    `json:"exportArchiveEnabled"`
}

func (h *Handler) getDashboard(c *gin.Context) {
	d, ok := h.buildDashboard(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, DashboardResponse{
		User:                   userToResponse(d.User),
		IsCourier:              d.IsCourier,
		RouteCount:             len(d.Routes),
		ScanCount:              len(d.Scans),
		RouteCompliantCount:    d.RouteCompliantCount,
		RouteNoncompliantCount: d.RouteNoncompliantCount,
		ScanCompliantCount:     d.ScanCompliantCount,
		ScanNoncompliantCount:  d.ScanNoncompliantCount,
		ScanComplianceRate:     d.ScanComplianceRate,
		KPIs:                   d.KPIs,
		ScanTypes:              d.ScanTypes,
		ExportArchiveEnabled:   h.exports != nil && h.exports.ArchiveEnabled(),
	})
}

type RouteRowResponse struct {
	Date              string          `json:"date"`
	CourierID         string          `json:"courierId"`
	CourierName       string          `json:"courierName"`
	Route             string          `json:"route"`
	Stop              int             `json:"stop"`
	Address           string          `json:"address"`
	Compliance        string          `json:"compliance"`
	Compliant         bool            `json:"compliant"`
	StopType          string          `json:"stopType"`
	PackagesPlanned   int             `json:"packagesPlanned"`
	PackagesDelivered int             `json:"packagesDelivered"`
	LeaveBuilding     string          `json:"leaveBuildingVariance"`
	ToArea            DurationFigures `json:"toArea"`
	AtStop            DurationFigures `json:"atStop"`
	BetweenStops      DurationFigures `json:"betweenStops"`
	StopsPerHour      RateFigures     `json:"stopsPerHour"`
}

type DurationFigures struct {
	PlannedMinutes int    `json:"plannedMinutes"`
	ActualMinutes  int    `json:"actualMinutes"`
	Variance       string `json:"variance"`
}

type RateFigures struct {
	Planned  string `json:"planned"`
	Actual   string `json:"actual"`
	Variance string `json:"variance"`
}

func (h *Handler) listRoutes(c *gin.Context) {
	d, ok := h.buildDashboard(c)
	if !ok {
		return
	}
	rows := service.RouteRows(d.Routes)
	resp := make([]RouteRowResponse, len(rows))
	for i := range rows {
		resp[i] = routeRowToResponse(rows[i])
	}
	c.JSON(http.StatusOK, resp)
}

type ScanRowResponse struct {
	Date             string          `json:"date"`
	CourierID        string          `json:"courierId"`
	CourierName      string          `json:"courierName"`
	Route            string          `json:"route"`
	Stop             int             `json:"stop"`
	Address          string          `json:"address"`
	Tracking         string          `json:"tracking"`
	ScanType         domain.ScanType `json:"scanType"`
	DistanceFeet     int             `json:"distanceFeet"`
	DistanceExceeded bool            `json:"distanceExceeded"`
	Compliance       string          `json:"compliance"`
	Compliant        bool            `json:"compliant"`
}

func (h *Handler) listScans(c *gin.Context) {
	d, ok := h.buildDashboard(c)
	if !ok {
		return
	}
	rows := service.ScanRows(d.Scans)
	resp := make([]ScanRowResponse, len(rows))
	for i, row := range rows {
		resp[i] = ScanRowResponse{
			Date:             row.Date,
			CourierID:        row.CourierID,
			CourierName:      row.CourierName,
			Route:            row.Route,
			Stop:             row.Stop,
			Address:          row.Address,
			Tracking:         row.Tracking,
			ScanType:         row.ScanType,
			DistanceFeet:     row.DistanceFeet,
			DistanceExceeded: row.DistanceExceeded,
			Compliance:       row.StatusLabel(),
			Compliant:        row.Compliant(),
		}
	}
	c.JSON(http.StatusOK, resp)
}

type ExportResponse struct {
	Location  string `json:"location"`
	Key       string `json:"key"`
	URL       string `json:"url"`
	ExpiresAt string `json:"expiresAt"`
}

func (h *Handler) exportDataset(c *gin.Context) {
	dataset, err := service.ParseDataset(c.Query("dataset"))
	if err != nil {
		BadRequest(c, ErrCodeInvalidRequest, err.Error())
		return
	}
	archive, err := strconv.ParseBool(c.DefaultQuery("archive", "false"))
	if err != nil {
		BadRequest(c, ErrCodeInvalidRequest, "invalid flag archive")
		return
	}
	if h.exports == nil {
		ErrorResponse(c, http.StatusServiceUnavailable, ErrCodeStorageUnavailable, "export not configured")
		return
	}

	d, ok := h.buildDashboard(c)
	if !ok {
		return
	}

	if archive {
		archived, err := h.exports.Archive(c.Request.Context(), d, dataset)
		if err != nil {
			if errors.Is(err, service.ErrArchiveUnavailable) {
				ErrorResponse(c, http.StatusServiceUnavailable, ErrCodeStorageUnavailable, err.Error())
				return
			}
			h.logger.WithError(err).WithField("dataset", dataset).Error("archive export")
			InternalError(c, "failed to archive export")
			return
		}
		c.JSON(http.StatusOK, ExportResponse{
			Location:  archived.Location,
			Key:       archived.Key,
			URL:       archived.URL,
			ExpiresAt: archived.ExpiresAt.Format(time.RFC3339),
		})
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, h.exports.FileName(dataset)))
	c.Status(http.StatusOK)
	if err := h.exports.WriteCSV(c.Writer, d, dataset); err != nil {
		h.logger.WithError(err).WithField("dataset", dataset).Warn("write csv export")
	}
}

type StorageObjectResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"lastModified,omitempty"`
}

func (h *Handler) listExports(c *gin.Context) {
	if h.exports == nil || !h.exports.ArchiveEnabled() {
		ErrorResponse(c, http.StatusServiceUnavailable, ErrCodeStorageUnavailable, service.ErrArchiveUnavailable.Error())
		return
	}
	sess := CurrentSession(c)
	objects, err := h.exports.ListArchives(c.Request.Context(), sess.User)
	if err != nil {
		h.logger.WithError(err).Error("list exports")
		InternalError(c, "failed to list exports")
		return
	}

	resp := make([]StorageObjectResponse, len(objects))
	for i := range objects {
		resp[i] = objectToResponse(objects[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) buildDashboard(c *gin.Context) (*service.Dashboard, bool) {
	sess := CurrentSession(c)
	d, err := h.dashboards.Build(c.Request.Context(), sess.User)
	if err != nil {
		h.logger.WithError(err).Error("build dashboard")
		InternalError(c, "failed to load compliance records")
		return nil, false
	}
	return d, true
}

func (h *Handler) setCookie(c *gin.Context, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, token, maxAge, "/", "", h.secureCookie, true)
}

func (h *Handler) clearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, "", -1, "/", "", h.secureCookie, true)
}

func sessionToResponse(sess *domain.Session) SessionResponse {
	user := userToResponse(sess.User)
	expiresAt := sess.ExpiresAt.Format(time.RFC3339Nano)
	return SessionResponse{
		Authenticated: true,
		User:          &user,
		ExpiresAt:     &expiresAt,
	}
}

func userToResponse(u domain.SessionUser) UserResponse {
	return UserResponse{
		LoginID:     u.LoginID,
		DisplayName: u.Name(),
		Role:        u.Role,
		CourierID:   u.CourierID,
	}
}

func routeRowToResponse(row service.RouteRow) RouteRowResponse {
	return RouteRowResponse{
		Date:              row.Date,
		CourierID:         row.CourierID,
		CourierName:       row.CourierName,
		Route:             row.Route,
		Stop:              row.Stop,
		Address:           row.Address,
		Compliance:        row.StatusLabel(),
		Compliant:         row.Compliant(),
		StopType:          row.StopType,
		PackagesPlanned:   row.PackagesPlanned,
		PackagesDelivered: row.PackagesDelivered,
		LeaveBuilding:     row.LeaveBuildingVar,
		ToArea: DurationFigures{
			PlannedMinutes: row.ToAreaPlanned,
			ActualMinutes:  row.ToAreaActual,
			Variance:       row.ToAreaVariance,
		},
		AtStop: DurationFigures{
			PlannedMinutes: row.AtStopPlanned,
			ActualMinutes:  row.AtStopActual,
			Variance:       row.AtStopVariance,
		},
		BetweenStops: DurationFigures{
			PlannedMinutes: row.BetweenStopsPlanned,
			ActualMinutes:  row.BetweenStopsActual,
			Variance:       row.BetweenStopsVariance,
		},
		StopsPerHour: RateFigures{
			Planned:  row.StopsPerHourPlanned,
			Actual:   row.StopsPerHourActual,
			Variance: row.StopsPerHourVariance,
		},
	}
}

func objectToResponse(obj storage.ObjectInfo) StorageObjectResponse {
	resp := StorageObjectResponse{
		Key:  obj.Key,
		Size: obj.Size,
	}
	if obj.LastModified != nil && !obj.LastModified.IsZero() {
		v := obj.LastModified.Format(time.RFC3339)
		resp.LastModified = &v
	}
	return resp
}
