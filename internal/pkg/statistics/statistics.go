package statistics

import (
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/subsyncio/subsync/app/models"
	"github.com/subsyncio/subsync/app/repository"
	"github.com/subsyncio/subsync/internal/pkg/cache"
)

const (
	CacheKeySubscribersTotal  = "statistics:subscribers:total"
	CacheKeySyncsDaily        = "statistics:syncs:daily:%s" // Format with date YYYY-MM-DD
	CacheKeyConnectionsActive = "statistics:connections:active"
	CacheExpiration           = 30 * time.Minute
)

// StatisticsData holds the aggregate numbers shown on dashboards
type StatisticsData struct {
	TodaySyncs        int
	ActiveConnections int
	TotalSubscribers  int
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache reports whether the cached statistics are stale
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the statistics cache when it is stale
func UpdateCacheIfNeeded() {
	if ShouldUpdateCache() {
		cacheUpdateMutex.Lock()
		defer cacheUpdateMutex.Unlock()

		if err := UpdateStatisticsCache(); err != nil {
			log.Printf("Error updating statistics cache: %v", err)
		} else {
			lastCacheUpdate = time.Now()
		}
	}
}

// ResetCacheUpdateTimer forces the next read to refresh the cache
func ResetCacheUpdateTimer() {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	lastCacheUpdate = time.Time{}
}

// UpdateStatisticsCache updates all statistics in the cache
func UpdateStatisticsCache() error {
	repos := repository.GetGlobalRepositories()

	totalSubscribers, err := repos.Subscriber.Count()
	if err != nil {
		log.Printf("Error counting subscribers: %v", err)
		return err
	}

	today := time.Now().Format("2006-01-02")
	todayStart, _ := time.Parse("2006-01-02", today)

	todaySyncs, err := repos.SyncHistory.CountSince(todayStart)
	if err != nil {
		log.Printf("Error counting today's syncs: %v", err)
		return err
	}

	activeConnections, err := repos.Connection.CountByStatus(models.ConnectionStatusActive)
	if err != nil {
		log.Printf("Error counting active connections: %v", err)
		return err
	}

	if err := cache.Set(CacheKeySubscribersTotal, strconv.FormatInt(totalSubscribers, 10), CacheExpiration); err != nil {
		log.Printf("Error caching subscriber total: %v", err)
		return err
	}

	dailyKey := fmt.Sprintf(CacheKeySyncsDaily, today)
	if err := cache.Set(dailyKey, strconv.FormatInt(todaySyncs, 10), CacheExpiration); err != nil {
		log.Printf("Error caching today's syncs: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyConnectionsActive, strconv.FormatInt(activeConnections, 10), CacheExpiration); err != nil {
		log.Printf("Error caching active connections: %v", err)
		return err
	}

	log.Printf("Statistics updated in cache: Subscribers: %d, Today's Syncs: %d, Active Connections: %d",
		totalSubscribers, todaySyncs, activeConnections)

	return nil
}

// GetTotalSubscribers returns the subscriber count from cache or database
func GetTotalSubscribers() int {
	val, err := cache.Get(CacheKeySubscribersTotal)
	if err != nil {
		count, err := repository.GetGlobalRepositories().Subscriber.Count()
		if err != nil {
			log.Printf("Error counting subscribers: %v", err)
			return 0
		}

		if err := cache.Set(CacheKeySubscribersTotal, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching subscriber total: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetTodaySyncs returns the number of sync runs started today from cache or database
func GetTodaySyncs() int {
	today := time.Now().Format("2006-01-02")
	dailyKey := fmt.Sprintf(CacheKeySyncsDaily, today)

	val, err := cache.Get(dailyKey)
	if err != nil {
		todayStart, _ := time.Parse("2006-01-02", today)

		count, err := repository.GetGlobalRepositories().SyncHistory.CountSince(todayStart)
		if err != nil {
			log.Printf("Error counting today's syncs: %v", err)
			return 0
		}

		if err := cache.Set(dailyKey, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching today's syncs: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetActiveConnections returns the active connection count from cache or database
func GetActiveConnections() int {
	val, err := cache.Get(CacheKeyConnectionsActive)
	if err != nil {
		count, err := repository.GetGlobalRepositories().Connection.CountByStatus(models.ConnectionStatusActive)
		if err != nil {
			log.Printf("Error counting active connections: %v", err)
			return 0
		}

		if err := cache.Set(CacheKeyConnectionsActive, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching active connections: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetStatisticsData returns all statistics data as StatisticsData structure
func GetStatisticsData() StatisticsData {
	UpdateCacheIfNeeded()

	return StatisticsData{
		TodaySyncs:        GetTodaySyncs(),
		ActiveConnections: GetActiveConnections(),
		TotalSubscribers:  GetTotalSubscribers(),
	}
}
