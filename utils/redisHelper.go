package utils

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/mmdatafocus/shifts_backend/config"
)

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

/* generic functions */

func GetTypeName[T any]() string {
	var v T
	typeOfT := reflect.TypeOf(v)
	return typeOfT.Name()
}

/* Redis */

// store instance keyed by Type:$key
func StoreRedis[T any](obj *T, key any) error {
	return config.SetRedisObject(GetTypeName[T]()+":"+fmt.Sprint(key), obj, GetCacheLifespan())
}

// get from redis
// returns nil if does not exist
func RetrieveRedis[T any](key any) (*T, error) {
	var result *T
	exists, err := config.GetRedisObject(GetTypeName[T]()+":"+fmt.Sprint(key), &result)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return result, nil
}

// remove an instance, Type:$key
func RemoveRedisItem[T any](key any) error {
	return config.RemoveRedisKey(GetTypeName[T]() + ":" + fmt.Sprint(key))
}
