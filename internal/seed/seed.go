package seed

import (
	"fmt"
	"math/rand"
	"time"

	"countwatch/internal/models"
	"countwatch/internal/store"
)

// 种子名册的取值池。生成是确定性的（给定同一个 rand 源）。
var (
	firstNames = []string{
		"James", "Robert", "John", "Michael", "David", "William", "Richard",
		"Thomas", "Daniel", "Matthew", "Anthony", "Mark", "Steven", "Paul",
		"Joshua", "Kenneth", "Kevin", "Brian", "George", "Edward",
	}
	lastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller",
		"Davis", "Rodriguez", "Martinez", "Hernandez", "Lopez", "Gonzalez",
		"Wilson", "Anderson", "Taylor", "Moore", "Jackson", "Martin", "Lee",
	}
	offenses = []string{
		"Theft", "Fraud", "Assault", "Traffic offense", "Tax evasion", "Vandalism",
	}
)

// Residents 生成 n 名住员并写入名册。
// 房间号均匀落在 [RoomMin, RoomMax]，出生日期对应 18..70 岁，
// 80% 已做生物识别登记并携带设备侧外部ID。
func Residents(roster *store.RosterStore, n int, rnd *rand.Rand, now time.Time) {
	for i := 0; i < n; i++ {
		age := 18 + rnd.Intn(53)
		birth := now.AddDate(-age, 0, -rnd.Intn(365))

		r := models.Resident{
			FirstName:  firstNames[rnd.Intn(len(firstNames))],
			LastName:   lastNames[rnd.Intn(len(lastNames))],
			RoomNumber: models.RoomMin + rnd.Intn(models.RoomMax-models.RoomMin+1),
			BirthDate:  birth,
			Offense:    offenses[rnd.Intn(len(offenses))],
			PhotoURL:   fmt.Sprintf("https://i.pravatar.cc/150?u=%d", rnd.Intn(100000)),
		}
		created := roster.Add(r)

		if rnd.Float64() < 0.8 {
			registered := true
			deviceUserID := fmt.Sprintf("%d", 1000+rnd.Intn(9000))
			roster.Update(created.ResidentID, store.ResidentPatch{
				BiometricRegistered: &registered,
				DeviceUserID:        &deviceUserID,
			})
		}
	}
}

// DefaultSchedules 默认的五个点名窗口
func DefaultSchedules() []models.CountSchedule {
	return []models.CountSchedule{
		{ScheduleID: 1, Name: "Morning count", StartTime: "07:00", EndTime: "08:00"},
		{ScheduleID: 2, Name: "Midday count", StartTime: "11:30", EndTime: "12:30"},
		{ScheduleID: 3, Name: "Afternoon count", StartTime: "16:30", EndTime: "17:30"},
		{ScheduleID: 4, Name: "Evening count", StartTime: "19:00", EndTime: "20:00"},
		{ScheduleID: 5, Name: "Night count", StartTime: "22:30", EndTime: "23:30"},
	}
}

// DefaultDevices 默认的两台扫描仪端点
func DefaultDevices() []models.DeviceConfig {
	return []models.DeviceConfig{
		{
			DeviceID:  1,
			Name:      "Main gate turnstile 1",
			IPAddress: "192.168.1.10",
			Port:      4370,
			Type:      models.DeviceTypeHybrid,
			Location:  "Block A entrance",
			Status:    models.DeviceDisconnected,
		},
		{
			DeviceID:  2,
			Name:      "Cafeteria entrance",
			IPAddress: "192.168.1.12",
			Port:      4370,
			Type:      models.DeviceTypeFace,
			Location:  "Cafeteria",
			Status:    models.DeviceDisconnected,
		},
	}
}
