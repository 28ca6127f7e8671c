package sqlinline

// QReserveAndInsertJob debits the hold, writes the RESERVE event and inserts
// the QUEUED job in one statement. It returns no row when the balance is short.
const QReserveAndInsertJob = `--sql 94297b78-de00-41a7-855c-aa5946e00eea
with
input as (
  select
    $1::uuid    as job_id,
    $2::uuid    as user_id,
    $3::int     as amount,
    $4::text    as idea,
    $5::text    as preset_key,
    $6::text    as aspect_ratio,
    $7::text    as mood_tags,
    $8::jsonb   as preset_answers,
    $9::bool    as bypass,
    $10::text   as direct_prompt,
    $11::text[] as providers,
    $12::uuid   as event_id,
    $13::text   as reason
),
debited as (
  update users u
  set credits_balance = u.credits_balance - (select amount from input),
      updated_at = now()
  where u.id = (select user_id from input)
    and u.credits_balance >= (select amount from input)
  returning u.id, u.credits_balance
),
ins_job as (
  insert into jobs (
    id, user_id, idea, preset_key, aspect_ratio, mood_tags, preset_answers,
    bypass, direct_prompt, providers, reserved_credits, status, created_at, updated_at
  )
  select
    i.job_id, i.user_id, i.idea, nullif(i.preset_key, ''), i.aspect_ratio, nullif(i.mood_tags, ''),
    i.preset_answers, i.bypass, nullif(i.direct_prompt, ''), i.providers, i.amount, 'QUEUED', now(), now()
  from input i
  where exists (select 1 from debited)
  returning id, created_at
),
ins_event as (
  insert into credit_events (id, user_id, amount, type, reason, job_id, created_at)
  select i.event_id, i.user_id, -i.amount, 'RESERVE', i.reason, i.job_id, now()
  from input i
  where exists (select 1 from debited)
  returning id
)
select d.credits_balance, j.created_at
from debited d, ins_job j;
`

const QSelectJobByID = `--sql 920a88dc-24bc-49ab-8f75-9ae62e94fcb6
select
  id::text, user_id::text, idea, coalesce(preset_key, ''), aspect_ratio, coalesce(mood_tags, ''),
  preset_answers, bypass, coalesce(direct_prompt, ''), providers, reserved_credits, status,
  coalesce(draft_prompt_id::text, ''), coalesce(graded_prompt_id::text, ''), grade_score,
  coalesce(grade_notes, ''), coalesce(error_message, ''), created_at, updated_at
from jobs
where id = $1::uuid;
`

const QListJobsByUser = `--sql 64c9038f-37a5-4e4a-86c6-3ad1dc5c2a90
select
  id::text, user_id::text, idea, coalesce(preset_key, ''), aspect_ratio, coalesce(mood_tags, ''),
  preset_answers, bypass, coalesce(direct_prompt, ''), providers, reserved_credits, status,
  coalesce(draft_prompt_id::text, ''), coalesce(graded_prompt_id::text, ''), grade_score,
  coalesce(grade_notes, ''), coalesce(error_message, ''), created_at, updated_at
from jobs
where user_id = $1::uuid
order by created_at desc
limit $2::int offset $3::int;
`

const QSelectJobStatus = `--sql d8fb965a-a9c4-4033-89e5-e4ba32ab3476
select status
from jobs
where id = $1::uuid;
`

const QClaimJob = `--sql 4a3cf5f6-7d9d-44a5-94ea-d82111837a18
update jobs
set status = 'RUNNING', updated_at = now()
where id = $1::uuid
  and status = 'QUEUED'
returning
  id::text, user_id::text, idea, coalesce(preset_key, ''), aspect_ratio, coalesce(mood_tags, ''),
  preset_answers, bypass, coalesce(direct_prompt, ''), providers, reserved_credits, status,
  coalesce(draft_prompt_id::text, ''), coalesce(graded_prompt_id::text, ''), grade_score,
  coalesce(grade_notes, ''), coalesce(error_message, ''), created_at, updated_at;
`

// QResumeJob picks a RUNNING job back up after its message was redelivered.
const QResumeJob = `--sql 9e41d2a7-3b5c-4f08-8a6e-c17d05b2f4e9
update jobs
set updated_at = now()
where id = $1::uuid
  and status = 'RUNNING'
returning
  id::text, user_id::text, idea, coalesce(preset_key, ''), aspect_ratio, coalesce(mood_tags, ''),
  preset_answers, bypass, coalesce(direct_prompt, ''), providers, reserved_credits, status,
  coalesce(draft_prompt_id::text, ''), coalesce(graded_prompt_id::text, ''), grade_score,
  coalesce(grade_notes, ''), coalesce(error_message, ''), created_at, updated_at;
`

const QResetJob = `--sql 5d7f3c28-e0a4-4b91-96c2-8f1a6b3e7d50
update jobs
set status = 'QUEUED', updated_at = now()
where id = $1::uuid
  and status = 'RUNNING';
`

const QAttachDraftPrompt = `--sql d1837b0c-5085-4eb5-8195-6aa4531ed172
update jobs
set draft_prompt_id = $2::uuid, updated_at = now()
where id = $1::uuid
  and status = 'RUNNING';
`

const QAttachGrade = `--sql 8b8bc4c4-583e-4220-ae25-ba3942046a82
update jobs
set graded_prompt_id = $2::uuid,
    grade_score = $3::int,
    grade_notes = $4::text,
    updated_at = now()
where id = $1::uuid
  and status = 'RUNNING';
`

const QFinishJob = `--sql 6eaa253d-8165-4ce4-b0d1-2a84f8def356
update jobs
set status = $2::text,
    error_message = nullif($3::text, ''),
    updated_at = now()
where id = $1::uuid
  and status = 'RUNNING';
`

const QCancelJob = `--sql c3782179-32e5-44e0-aabf-4c82e55ab368
with prior as (
  select id, status
  from jobs
  where id = $1::uuid
    and status in ('QUEUED', 'RUNNING')
  for update
)
update jobs j
set status = 'CANCELED', updated_at = now()
from prior
where j.id = prior.id
returning
  j.id::text, j.user_id::text, j.idea, coalesce(j.preset_key, ''), j.aspect_ratio, coalesce(j.mood_tags, ''),
  j.preset_answers, j.bypass, coalesce(j.direct_prompt, ''), j.providers, j.reserved_credits, j.status,
  coalesce(j.draft_prompt_id::text, ''), coalesce(j.graded_prompt_id::text, ''), j.grade_score,
  coalesce(j.grade_notes, ''), coalesce(j.error_message, ''), j.created_at, j.updated_at,
  prior.status;
`
