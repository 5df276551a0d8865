package main

import (
	"encoding/json"
	"time"

	"github.com/superm1/bulb_controller/state"
	. "github.com/superm1/bulb_controller/util"
)

var poll_queue chan *BulbHandle
var poll_ticker *time.Ticker
var bulb_poller BulbPoller

type BulbPoller struct {
	Frequency int64
	Workers   int64
}

func (bp *BulbPoller) MakeBulbPoller() {
	bp.Frequency = Config.GetInt64("poll_frequency")
	bp.Workers = Config.GetInt64("poll_workers")
	if bp.Workers < 1 {
		bp.Workers = 1
	}
	if poll_queue == nil {
		poll_queue = make(chan *BulbHandle, bp.Workers*4)
	}
	for i := 0; i < int(bp.Workers); i++ {
		go poll_worker(poll_queue)
	}
}

// Start scans once a second and enqueues every bulb whose poll period has
// elapsed. Periods are per bulb, falling back to poll_frequency.
func (bp *BulbPoller) Start() {
	poll_ticker = time.NewTicker(1 * time.Second)
	go func() {
		for {
			<-poll_ticker.C
			now := time.Now().Unix()
			fleet_mu.RLock()
			for _, handle := range fleet {
				if now-handle.lastPoll < model.PollPeriod(handle.Name) {
					continue
				}
				handle.lastPoll = now
				select {
				case poll_queue <- handle:
				default:
					Logger.Warn().Msgf("poll queue full, skipping %s", handle.Name)
				}
			}
			fleet_mu.RUnlock()
		}
	}()
}

func poll_worker(jobs <-chan *BulbHandle) {
	for job := range jobs {
		poll_job(job)
	}
}

func poll_job(handle *BulbHandle) {
	power, err := handle.Light.Power()
	if err != nil {
		Logger.Error().Msgf("polling %s failed: %v", handle.Name, err)
		registry.MarkFailed(handle.Name, handle.Host, err)
		publishStatus(handle.Name)
		return
	}
	info, err := handle.Light.StateInfo()
	if err != nil {
		Logger.Error().Msgf("polling %s failed: %v", handle.Name, err)
		registry.MarkFailed(handle.Name, handle.Host, err)
		publishStatus(handle.Name)
		return
	}
	registry.Update(state.BulbStatus{Name: handle.Name, Host: handle.Host, Power: power, Info: info})
	publishStatus(handle.Name)
}

// publishStatus publishes the retained state document the HA value
// templates read, and mirrors it to websocket clients.
func publishStatus(name string) {
	status, ok := registry.Get(name)
	if !ok {
		return
	}
	data, err := json.Marshal(status)
	if err != nil {
		Logger.Error().Msgf("Error marshaling status for %s: %v", name, err)
		return
	}
	if Client != nil && Client.IsConnected() {
		token := Client.Publish(StateTopic(name), byte(0), true, data)
		token.Wait()
	}
	wsHub.BroadcastUpdate("bulb_update", status)
}
