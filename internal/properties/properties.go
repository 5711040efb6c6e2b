package properties

import (
	"os"
	"runtime"
	"strconv"
)

func RootPath() string {
	return os.Getenv("ROOT_PATH")
}

func DataPath() string {
	return RootPath() + "/data"
}

func ImagesPath() string {
	return DataPath() + "/images"
}

func TempPath() string {
	return DataPath() + "/temp"
}

func ResultPath() string {
	return DataPath() + "/result"
}

// Workers is the chunk worker pool size, defaulting to the CPU count.
func Workers() int {
	if v := os.Getenv("WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return runtime.NumCPU()
}

type Color struct {
	R, G, B, A uint8
}

// Mask colors for the classified output image. Later entries in the render
// precedence override earlier ones per pixel.
var MaskColorMap = map[string]Color{
	"change_out_of_range":    {0, 0, 0, 255},
	"composite_out_of_range": {255, 255, 255, 255},
	"no_data":                {0, 0, 0, 0},
}

func DiscordErrorNotificationUrl() string {
	return os.Getenv("DISCORD_ERROR_NOTIFICATION_URL")
}
func DiscordSuccessNotificationUrl() string {
	return os.Getenv("DISCORD_SUCCESS_NOTIFICATION_URL")
}
