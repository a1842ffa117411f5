// Package api exposes the readings and manager lifecycle over HTTP.
package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/alexytsu/NIARC-2018/internal/manager"
	"github.com/alexytsu/NIARC-2018/internal/sensor"
)

type Controller struct {
	imu   manager.Manager
	color manager.ColorManager
}

// NewRouter builds the gin engine. color may be nil when the color sensor
// is disabled.
func NewRouter(imu manager.Manager, color manager.ColorManager, debug bool) *gin.Engine {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	c := &Controller{imu: imu, color: color}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(g *gin.Context) {
		g.String(http.StatusOK, "ok")
	})

	v1 := r.Group("/v1")
	{
		v1.GET("/imu/devices", c.listDevices)
		v1.GET("/imu/latest", c.latestIMU)
		v1.GET("/imu/status", c.imuStatus)
		v1.POST("/imu/start", c.startIMU)
		v1.POST("/imu/stop", c.stopIMU)
		v1.GET("/color/latest", c.latestColor)
	}
	return r
}

func (c *Controller) listDevices(g *gin.Context) {
	ids, err := c.imu.ListDev()
	if err != nil {
		g.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	g.JSON(http.StatusOK, gin.H{"ids": ids})
}

func (c *Controller) imuStatus(g *gin.Context) {
	g.JSON(http.StatusOK, gin.H{
		"running": c.imu.Running(),
		"faulted": c.imu.Faulted(),
		"stopped": c.imu.ManuallyStopped(),
	})
}

func (c *Controller) latestIMU(g *gin.Context) {
	cursor := int64(-1)
	if q := g.Query("cursor"); q != "" {
		v, err := strconv.ParseInt(q, 10, 64)
		if err != nil {
			g.JSON(http.StatusBadRequest, gin.H{"err": "bad cursor"})
			return
		}
		cursor = v
	}
	next, readings, err := c.imu.Read(cursor)
	if err != nil {
		g.JSON(http.StatusServiceUnavailable, gin.H{"err": err.Error()})
		return
	}
	g.JSON(http.StatusOK, gin.H{
		"cursor":   next,
		"readings": toJSON(readings),
	})
}

func (c *Controller) startIMU(g *gin.Context) {
	if err := c.imu.Start(); err != nil {
		g.JSON(http.StatusInternalServerError, gin.H{"running": c.imu.Running(), "err": err.Error()})
		return
	}
	g.JSON(http.StatusOK, gin.H{"running": c.imu.Running()})
}

func (c *Controller) stopIMU(g *gin.Context) {
	if err := c.imu.Stop(); err != nil {
		g.JSON(http.StatusInternalServerError, gin.H{"running": c.imu.Running(), "err": err.Error()})
		return
	}
	g.JSON(http.StatusOK, gin.H{"running": c.imu.Running()})
}

func (c *Controller) latestColor(g *gin.Context) {
	if c.color == nil {
		g.JSON(http.StatusNotFound, gin.H{"err": "color sensor disabled"})
		return
	}
	r, err := c.color.Latest()
	if err != nil {
		g.JSON(http.StatusServiceUnavailable, gin.H{"err": err.Error()})
		return
	}
	g.JSON(http.StatusOK, gin.H{
		"clear":    r.Clear,
		"red":      r.Red,
		"green":    r.Green,
		"blue":     r.Blue,
		"dominant": r.Dominant.String(),
		"message":  r.Dominant.Message(),
		"ticks":    r.SysTicks,
	})
}

type imuJSON struct {
	ID       string     `json:"id"`
	Report   uint8      `json:"report"`
	Seq      uint64     `json:"seq"`
	SysTicks int64      `json:"sys_ticks"`
	Quat     [4]float32 `json:"quat"`
	QuatAcc  float32    `json:"quat_accuracy_rad"`
	Acc      [3]float32 `json:"acc"`
	LinAcc   [3]float32 `json:"lin_acc"`
	Gyro     [3]float32 `json:"gyro"`
	Mag      [3]float32 `json:"mag"`
	Euler    [3]float32 `json:"euler"`
	Steps    uint16     `json:"steps"`
}

func toJSON(readings []sensor.IMUReadingWrapped) []imuJSON {
	out := make([]imuJSON, len(readings))
	for i, r := range readings {
		out[i] = imuJSON{
			ID:       r.ID,
			Report:   r.Report,
			Seq:      r.Seq,
			SysTicks: r.SysTicks,
			Quat:     r.Quat,
			QuatAcc:  r.QuatAccuracyRad,
			Acc:      r.Acc,
			LinAcc:   r.LinAcc,
			Gyro:     r.Gyro,
			Mag:      r.Mag,
			Euler:    sensor.QuatToEuler(r.Quat),
			Steps:    r.Steps,
		}
	}
	return out
}
