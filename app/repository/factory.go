package repository

import (
	"sync"

	"gorm.io/gorm"
)

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		VoiceModel:   NewVoiceModelRepository(db),
		AudioFile:    NewAudioFileRepository(db),
		Conversion:   NewConversionRepository(db),
		Subscription: NewSubscriptionRepository(db),
		DeliveryLog:  NewDeliveryLogRepository(db),
	}
}

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{
		db: db,
	}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// GetUserRepository returns the user repository instance
func (f *Factory) GetUserRepository() UserRepository {
	return f.GetRepositories().User
}

// GetVoiceModelRepository returns the voice model repository instance
func (f *Factory) GetVoiceModelRepository() VoiceModelRepository {
	return f.GetRepositories().VoiceModel
}

// GetAudioFileRepository returns the audio file repository instance
func (f *Factory) GetAudioFileRepository() AudioFileRepository {
	return f.GetRepositories().AudioFile
}

// GetConversionRepository returns the conversion repository instance
func (f *Factory) GetConversionRepository() ConversionRepository {
	return f.GetRepositories().Conversion
}

// GetSubscriptionRepository returns the webhook subscription repository instance
func (f *Factory) GetSubscriptionRepository() SubscriptionRepository {
	return f.GetRepositories().Subscription
}

// GetDeliveryLogRepository returns the delivery log repository instance
func (f *Factory) GetDeliveryLogRepository() DeliveryLogRepository {
	return f.GetRepositories().DeliveryLog
}

// Global factory instance
var globalFactory *Factory
var factoryOnce sync.Once

// InitializeFactory initializes the global repository factory
func InitializeFactory(db *gorm.DB) {
	factoryOnce.Do(func() {
		globalFactory = NewFactory(db)
	})
}

// GetGlobalFactory returns the global repository factory instance
func GetGlobalFactory() *Factory {
	if globalFactory == nil {
		panic("Repository factory not initialized. Call InitializeFactory first.")
	}
	return globalFactory
}

// GetGlobalRepositories returns the global repositories instance
func GetGlobalRepositories() *Repositories {
	return GetGlobalFactory().GetRepositories()
}
