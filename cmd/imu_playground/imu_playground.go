package main

import (
	"fmt"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/alexytsu/NIARC-2018/internal/config"
	"github.com/alexytsu/NIARC-2018/internal/manager/bno080"
	"github.com/alexytsu/NIARC-2018/internal/sensor"
	"github.com/alexytsu/NIARC-2018/internal/server"
)

var defaultTableValue = [][]string{{"ID", "Quat", "Euler", "Timestamp"}}

func getTable() *widgets.Table {
	table := widgets.NewTable()
	table.Rows = defaultTableValue
	table.ColumnWidths = []int{10, 32, 26, 12}
	table.TextStyle = ui.NewStyle(ui.ColorWhite)
	table.TextAlignment = ui.AlignRight
	table.SetRect(0, 0, 84, 36)
	return table
}

func printArray(arr []float32) string {
	str := ""
	for i, num := range arr {
		str += fmt.Sprintf("%.2f", num)
		if i != len(arr)-1 {
			str += ", "
		}
	}
	return str
}

func updateValue(opt *config.NIARCOpt, table *widgets.Table) {

	manager := bno080.NewManager(opt)
	tableRowMap := make(map[string]int)

	for _, imu := range opt.IMU {
		table.Rows = append(table.Rows, []string{"", "", "", ""})
		tableRowMap[imu.ID] = len(table.Rows) - 1
	}
	err := manager.Start()
	if err != nil {
		log.Panicln(err)
	}

	for {
		_, res, err := manager.Read(-1)
		if err != nil {
			log.Warnln(err)
			time.Sleep(time.Millisecond * 100)
			continue
		}

		for _, data := range res {
			euler := sensor.QuatToEuler(data.Quat)
			table.Rows[tableRowMap[data.ID]] = []string{
				data.ID,
				printArray(data.Quat[:]),
				printArray(euler[:]),
				fmt.Sprintf("%d", data.Timestamp),
			}
		}

		ui.Render(table)
		time.Sleep(time.Millisecond * 10)

	}
}

func _main(cmd *cobra.Command, args []string) {
	log.Info("Starting")
	if err := ui.Init(); err != nil {
		log.Fatalf("failed to initialize termui: %v", err)
	}
	defer ui.Close()

	t := getTable()
	opt := server.NewMainApp(cmd, args).PrepareRun().GetOpt()
	go updateValue(opt, t)

	uiEvents := ui.PollEvents()
	for {
		e := <-uiEvents
		switch e.ID {
		case "q", "<C-c>":
			return
		}
	}

}

var rootCmd = &cobra.Command{
	Use:   "imu_playground",
	Short: "imu_playground",
	Long:  "imu_playground",
	Run: func(cmd *cobra.Command, args []string) {
		_main(cmd, args)
	},
}

func main() {
	rootCmd.Flags().String("config", "", "default configuration path")
	rootCmd.Flags().Int64P("port", "p", config.DefaultAPIPort, "port that the HTTP API listens on")
	rootCmd.Flags().StringP("interface", "i", config.DefaultAPIInterface, "interface that the HTTP API listens on, default to 0.0.0.0")
	rootCmd.Flags().Bool("debug", false, "toggle debug logging")

	err := rootCmd.Execute()
	if err != nil {
		return
	}
}
