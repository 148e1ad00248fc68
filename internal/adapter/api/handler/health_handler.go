package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"shopchat/internal/infrastructure/firebase"
	"shopchat/internal/infrastructure/redisq"
)

type HealthHandler struct {
	firebaseAuth *firebase.FirebaseAuthClient
	workerHealth *redisq.HealthMonitor
}

var healthHandler *HealthHandler

func NewHealthHandler(firebaseAuth *firebase.FirebaseAuthClient, workerHealth *redisq.HealthMonitor) *HealthHandler {
	return &HealthHandler{
		firebaseAuth: firebaseAuth,
		workerHealth: workerHealth,
	}
}

func SetupHealthHandler(firebaseAuth *firebase.FirebaseAuthClient, workerHealth *redisq.HealthMonitor) {
	healthHandler = NewHealthHandler(firebaseAuth, workerHealth)
}

func GetHealthHandler() *HealthHandler {
	return healthHandler
}

func (h *HealthHandler) CheckHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "Server is running",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (h *HealthHandler) CheckFirebaseHealth(c echo.Context) error {
	err := h.firebaseAuth.TestConnection(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"status": "Firebase Auth connection failed",
			"error":  err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "Firebase Auth connected successfully",
	})
}

// CheckWorkers reports every worker with a live heartbeat. A worker missing
// from the list has let its heartbeat key expire.
func (h *HealthHandler) CheckWorkers(c echo.Context) error {
	workers, err := h.workerHealth.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"status": "Worker heartbeat lookup failed",
			"error":  err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"count":   len(workers),
		"workers": workers,
	})
}
