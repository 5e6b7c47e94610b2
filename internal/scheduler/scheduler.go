package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/hitoshi/pinflow/internal/model"
)

// tickInterval はスケジューラの判定周期。
const tickInterval = 60 * time.Second

// CycleRunner は投稿サイクルの実行口。
type CycleRunner interface {
	RunCycle(ctx context.Context) model.CycleResult
}

// Scheduler は 1 日の投稿スロットを管理し、揺らぎ付きの時刻でサイクルを起動する。
type Scheduler struct {
	slots            []model.ScheduleSlot
	jitterMinutes    int
	toleranceMinutes int
	rng              *rand.Rand
	logger           *slog.Logger
	now              func() time.Time
}

// New は Scheduler を生成する。スロットが空の場合は 09:00 の 1 枠になる。
// rng が nil の場合は時刻シードの乱数源を使う。now が nil の場合は time.Now を使う。
func New(slots []model.ScheduleSlot, jitterMinutes, toleranceMinutes int, rng *rand.Rand, logger *slog.Logger, now func() time.Time) *Scheduler {
	if len(slots) == 0 {
		slots = []model.ScheduleSlot{{Hour: 9, Minute: 0}}
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if now == nil {
		now = time.Now
	}

	sorted := make([]model.ScheduleSlot, len(slots))
	copy(sorted, slots)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Hour != sorted[j].Hour {
			return sorted[i].Hour < sorted[j].Hour
		}
		return sorted[i].Minute < sorted[j].Minute
	})

	return &Scheduler{
		slots:            sorted,
		jitterMinutes:    jitterMinutes,
		toleranceMinutes: toleranceMinutes,
		rng:              rng,
		logger:           logger,
		now:              now,
	}
}

// slotTime は指定日のスロット基準時刻を返す。
func (s *Scheduler) slotTime(day time.Time, slot model.ScheduleSlot) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), slot.Hour, slot.Minute, 0, 0, day.Location())
}

// jitter は ±jitterMinutes 分の揺らぎを返す。
func (s *Scheduler) jitter() time.Duration {
	if s.jitterMinutes <= 0 {
		return 0
	}
	span := 2*s.jitterMinutes + 1
	return time.Duration(s.rng.Intn(span)-s.jitterMinutes) * time.Minute
}

// NextPostingTime は次の投稿予定時刻(揺らぎ込み)を返す。
// 当日の残りスロットがなければ翌日の最初のスロットになる。
func (s *Scheduler) NextPostingTime() time.Time {
	now := s.now()

	for _, slot := range s.slots {
		target := s.slotTime(now, slot).Add(s.jitter())
		if target.After(now) {
			return target
		}
	}

	tomorrow := now.AddDate(0, 0, 1)
	return s.slotTime(tomorrow, s.slots[0]).Add(s.jitter())
}

// IsTimeToPost は現在時刻がいずれかのスロットの許容範囲内にあるかを返す。
func (s *Scheduler) IsTimeToPost() bool {
	return s.dueSlot(s.now()) >= 0
}

// dueSlot は now が許容範囲内にあるスロットの添字を返す。該当なしは -1。
// 各スロットの判定時刻にはそのつど揺らぎを加える。
func (s *Scheduler) dueSlot(now time.Time) int {
	tolerance := time.Duration(s.toleranceMinutes) * time.Minute
	for i, slot := range s.slots {
		target := s.slotTime(now, slot).Add(s.jitter())
		diff := now.Sub(target)
		if diff < 0 {
			diff = -diff
		}
		if diff <= tolerance {
			return i
		}
	}
	return -1
}

// DailyTargetTimes は当日の未到来スロット時刻(揺らぎ込み)を昇順で返す。
func (s *Scheduler) DailyTargetTimes() []time.Time {
	now := s.now()
	var targets []time.Time
	for _, slot := range s.slots {
		target := s.slotTime(now, slot).Add(s.jitter())
		if target.After(now) {
			targets = append(targets, target)
		}
	}
	// 揺らぎでスロットの順序が入れ替わることがある
	sort.Slice(targets, func(i, j int) bool { return targets[i].Before(targets[j]) })
	return targets
}

// ScheduleSummary はスロット構成の要約文字列を返す。
func (s *Scheduler) ScheduleSummary() string {
	times := make([]string, len(s.slots))
	for i, slot := range s.slots {
		times[i] = fmt.Sprintf("%02d:%02d", slot.Hour, slot.Minute)
	}
	return fmt.Sprintf("%s (±%d分, 1日%d枠)", strings.Join(times, ", "), s.jitterMinutes, len(s.slots))
}

// Start はコンテキストが閉じられるまでスロットの到来を監視し、
// 各スロットにつき 1 日 1 回だけサイクルを実行する。
func (s *Scheduler) Start(ctx context.Context, runner CycleRunner) {
	s.logger.Info("投稿スケジューラを開始します", slog.String("schedule", s.ScheduleSummary()))

	day := ""
	var targets []time.Time
	var fired []bool

	rearm := func(now time.Time) {
		day = now.Format("2006-01-02")
		targets = make([]time.Time, len(s.slots))
		fired = make([]bool, len(s.slots))
		for i, slot := range s.slots {
			targets[i] = s.slotTime(now, slot).Add(s.jitter())
		}
		s.logger.Info("当日の投稿予定を組み直しました", slog.String("day", day))
	}
	rearm(s.now())

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("投稿スケジューラを停止します")
			return
		case <-ticker.C:
			now := s.now()
			if now.Format("2006-01-02") != day {
				rearm(now)
			}

			tolerance := time.Duration(s.toleranceMinutes) * time.Minute
			for i, target := range targets {
				if fired[i] {
					continue
				}
				diff := now.Sub(target)
				if diff < 0 {
					continue
				}
				if diff > tolerance {
					// 停止などで許容範囲を過ぎたスロットは飛ばす
					fired[i] = true
					s.logger.Warn("投稿スロットを逃しました", slog.Time("target", target))
					continue
				}

				fired[i] = true
				result := runner.RunCycle(ctx)
				s.logger.Info("スロットのサイクルを実行しました",
					slog.Time("target", target),
					slog.String("outcome", string(result.Outcome)))
			}
		}
	}
}
