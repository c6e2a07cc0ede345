package service

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"campusconnect/backend/internal/dto"
	"campusconnect/backend/internal/model"
)

// ── ICS 导入导出 ────────────────────────────────────────────
//
// 导入：每个 VEVENT 转为一条日程。星期取自 DTSTART，SUMMARY → activity，
// LOCATION → location，类型固定为 class。同一课程以多个单次事件出现时只保留一条。
// 导出：每条日程输出为每周重复的事件，锚定在当前周。
// ─────────────────────────────────────────────────────────────

const icsProductID = "-//CampusConnect//Routines//EN"

// parseRoutineICS 解析 ICS 内容，返回可导入的日程与被跳过的事件
func parseRoutineICS(reader io.Reader, userID string, loc *time.Location) ([]model.Routine, []dto.ImportSkipEntry, error) {
	cal, err := ics.ParseCalendar(reader)
	if err != nil {
		return nil, nil, fmt.Errorf("ICS 格式解析失败: %w", err)
	}

	var routines []model.Routine
	var skipped []dto.ImportSkipEntry
	seen := make(map[string]bool)

	for _, evt := range cal.Events() {
		summary := ""
		if p := evt.GetProperty(ics.ComponentPropertySummary); p != nil {
			summary = strings.TrimSpace(p.Value)
		}
		if summary == "" {
			skipped = append(skipped, dto.ImportSkipEntry{Reason: "缺少 SUMMARY"})
			continue
		}

		start, end, err := eventRange(evt, loc)
		if err != nil {
			skipped = append(skipped, dto.ImportSkipEntry{Summary: summary, Reason: err.Error()})
			continue
		}

		day := model.Weekdays[goWeekdayToISO(start.Weekday())-1]
		r := model.Routine{
			UserID:    userID,
			Day:       day,
			StartTime: start.Format("15:04"),
			EndTime:   end.Format("15:04"),
			Activity:  truncate(summary, 200),
			Type:      model.RoutineTypeClass,
		}
		if p := evt.GetProperty(ics.ComponentPropertyLocation); p != nil && strings.TrimSpace(p.Value) != "" {
			location := truncate(strings.TrimSpace(p.Value), 200)
			r.Location = &location
		}

		// 周期课程常被展开成多个单次事件
		key := r.Day + "|" + r.StartTime + "|" + r.EndTime + "|" + r.Activity
		if seen[key] {
			continue
		}
		seen[key] = true
		routines = append(routines, r)
	}
	return routines, skipped, nil
}

// eventRange 解析事件起止时间；跨天或零时长事件返回错误
func eventRange(evt *ics.VEvent, loc *time.Location) (time.Time, time.Time, error) {
	start, err := parseICSDateTime(evt, ics.ComponentPropertyDtStart, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	end, err := parseICSDateTime(evt, ics.ComponentPropertyDtEnd, loc)
	if err != nil {
		durProp := evt.GetProperty(ics.ComponentPropertyDuration)
		if durProp == nil {
			return time.Time{}, time.Time{}, fmt.Errorf("缺少 DTEND 或 DURATION")
		}
		d, err := parseICSDuration(durProp.Value)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = start.Add(d)
	}

	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("结束时间早于开始时间")
	}
	if end.YearDay() != start.YearDay() || end.Year() != start.Year() {
		// 结束于次日零点仍视为当天
		if !(end.Sub(start) <= 24*time.Hour && end.Hour() == 0 && end.Minute() == 0) {
			return time.Time{}, time.Time{}, fmt.Errorf("跨天事件不支持")
		}
		end = end.Add(-time.Minute)
	}
	return start, end, nil
}

// parseICSDateTime 解析 ICS 日期属性，支持 UTC、TZID 与浮动时间
func parseICSDateTime(evt *ics.VEvent, propName ics.ComponentProperty, loc *time.Location) (time.Time, error) {
	prop := evt.GetProperty(propName)
	if prop == nil {
		return time.Time{}, fmt.Errorf("缺少 %s", propName)
	}
	val := strings.TrimSpace(prop.Value)

	tzid := ""
	for k, v := range prop.ICalParameters {
		if strings.EqualFold(k, "TZID") && len(v) > 0 {
			tzid = v[0]
		}
	}

	if t, err := time.Parse("20060102T150405Z", val); err == nil {
		return t.In(loc), nil
	}
	if t, err := time.Parse("20060102T150405", val); err == nil {
		if tzid != "" {
			if tzLoc, err := time.LoadLocation(tzid); err == nil {
				return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, tzLoc).In(loc), nil
			}
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
	}
	if _, err := time.Parse("20060102", val); err == nil {
		return time.Time{}, fmt.Errorf("全天事件不支持")
	}
	return time.Time{}, fmt.Errorf("无法解析日期: %s", val)
}

// parseICSDuration 解析 RFC 5545 DURATION 的时间部分，如 PT1H30M
func parseICSDuration(val string) (time.Duration, error) {
	v := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(val)), "+")
	if !strings.HasPrefix(v, "PT") {
		return 0, fmt.Errorf("不支持的 DURATION: %s", val)
	}
	var total time.Duration
	num := ""
	for _, r := range v[2:] {
		switch {
		case r >= '0' && r <= '9':
			num += string(r)
		case r == 'H' || r == 'M' || r == 'S':
			n, err := strconv.Atoi(num)
			if err != nil {
				return 0, fmt.Errorf("不支持的 DURATION: %s", val)
			}
			unit := map[rune]time.Duration{'H': time.Hour, 'M': time.Minute, 'S': time.Second}[r]
			total += time.Duration(n) * unit
			num = ""
		default:
			return 0, fmt.Errorf("不支持的 DURATION: %s", val)
		}
	}
	if num != "" || total <= 0 {
		return 0, fmt.Errorf("不支持的 DURATION: %s", val)
	}
	return total, nil
}

// buildRoutineICS 将日程导出为每周重复的日历
func buildRoutineICS(routines []model.Routine, calName string, now time.Time, loc *time.Location) (string, error) {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(icsProductID)
	cal.SetXWRCalName(calName)

	// 本周一（loc 时区）
	local := now.In(loc)
	monday := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).
		AddDate(0, 0, -(goWeekdayToISO(local.Weekday()) - 1))

	for _, r := range routines {
		dayIdx := weekdayIndex(r.Day)
		if dayIdx < 0 {
			continue
		}
		startMin, err := clockMinutes(r.StartTime)
		if err != nil {
			return "", err
		}
		endMin, err := clockMinutes(r.EndTime)
		if err != nil {
			return "", err
		}
		date := monday.AddDate(0, 0, dayIdx)

		evt := cal.AddEvent(r.RoutineID + "@campusconnect")
		evt.SetDtStampTime(now)
		evt.SetStartAt(date.Add(time.Duration(startMin) * time.Minute))
		evt.SetEndAt(date.Add(time.Duration(endMin) * time.Minute))
		evt.SetSummary(r.Activity)
		if r.Location != nil {
			evt.SetLocation(*r.Location)
		}
		evt.AddProperty(ics.ComponentPropertyRrule, "FREQ=WEEKLY")
		evt.AddProperty(ics.ComponentPropertyCategories, strings.ToUpper(r.Type))
	}
	return cal.Serialize(), nil
}

// goWeekdayToISO Go Weekday (0=Sunday) → ISO (1=Monday … 7=Sunday)
func goWeekdayToISO(wd time.Weekday) int {
	if wd == time.Sunday {
		return 7
	}
	return int(wd)
}

func weekdayIndex(day string) int {
	for i, d := range model.Weekdays {
		if d == day {
			return i
		}
	}
	return -1
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
